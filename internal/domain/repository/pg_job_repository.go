package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
)

type pgJobRepository struct {
	db *sql.DB
}

func NewPgJobRepository(db *sql.DB) JobRepository {
	return &pgJobRepository{db: db}
}

func (r *pgJobRepository) Create(ctx context.Context, job *model.JobRecord) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("pgJobRepository.Create: %w", err)
	}
	query := `INSERT INTO weather_jobs (id, record, version) VALUES ($1, $2, $3)`
	_, err = r.db.ExecContext(ctx, query, job.ID, payload, job.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("job %s: %w", job.ID, common.ErrAlreadyExists)
		}
		return fmt.Errorf("pgJobRepository.Create: %w", err)
	}
	return nil
}

func (r *pgJobRepository) Get(ctx context.Context, id string) (*model.JobRecord, error) {
	query := `SELECT record, version FROM weather_jobs WHERE id = $1`
	var payload []byte
	var version int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&payload, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgJobRepository.Get: %w", err)
	}
	job := &model.JobRecord{}
	if err := json.Unmarshal(payload, job); err != nil {
		return nil, fmt.Errorf("pgJobRepository.Get: %w", err)
	}
	// The column is authoritative; it is what the conditional UPDATE keys on.
	job.Version = version
	return job, nil
}

func (r *pgJobRepository) Update(ctx context.Context, job *model.JobRecord) error {
	next := job.Clone()
	next.Version = job.Version + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("pgJobRepository.Update: %w", err)
	}

	query := `UPDATE weather_jobs SET record = $1, version = version + 1
	          WHERE id = $2 AND version = $3`
	res, err := r.db.ExecContext(ctx, query, payload, job.ID, job.Version)
	if err != nil {
		return fmt.Errorf("pgJobRepository.Update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgJobRepository.Update: %w", err)
	}
	if affected == 0 {
		// Zero rows means either a concurrent writer advanced the version or
		// the job never existed; probe to report the right error.
		var exists bool
		probe := `SELECT EXISTS (SELECT 1 FROM weather_jobs WHERE id = $1)`
		if err := r.db.QueryRowContext(ctx, probe, job.ID).Scan(&exists); err != nil {
			return fmt.Errorf("pgJobRepository.Update: %w", err)
		}
		if !exists {
			return common.ErrNotFound
		}
		return fmt.Errorf("job %s: %w", job.ID, common.ErrVersionConflict)
	}
	job.Version = next.Version
	return nil
}
