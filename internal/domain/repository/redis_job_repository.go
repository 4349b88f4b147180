package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
)

const jobKeyPrefix = "weatherjob:"

// compareAndSetScript commits the new payload only while the stored record
// still carries the expected version. Running it server-side makes the
// read-compare-write step atomic even across processes.
var compareAndSetScript = redis.NewScript(`
    local current = redis.call("get", KEYS[1])
    if not current then
        return -1
    end
    if cjson.decode(current)["version"] ~= tonumber(ARGV[1]) then
        return 0
    end
    redis.call("set", KEYS[1], ARGV[2])
    return 1
`)

type redisJobRepository struct {
	rdb *redis.Client
}

func NewRedisJobRepository(rdb *redis.Client) JobRepository {
	return &redisJobRepository{rdb: rdb}
}

func (r *redisJobRepository) Create(ctx context.Context, job *model.JobRecord) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redisJobRepository.Create: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, jobKey(job.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("redisJobRepository.Create: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s: %w", job.ID, common.ErrAlreadyExists)
	}
	return nil
}

func (r *redisJobRepository) Get(ctx context.Context, id string) (*model.JobRecord, error) {
	data, err := r.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("redisJobRepository.Get: %w", err)
	}
	job := &model.JobRecord{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("redisJobRepository.Get: %w", err)
	}
	return job, nil
}

func (r *redisJobRepository) Update(ctx context.Context, job *model.JobRecord) error {
	expected := job.Version
	next := job.Clone()
	next.Version = expected + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("redisJobRepository.Update: %w", err)
	}

	res, err := compareAndSetScript.Run(ctx, r.rdb,
		[]string{jobKey(job.ID)},
		strconv.FormatInt(expected, 10), payload,
	).Int()
	if err != nil {
		return fmt.Errorf("redisJobRepository.Update: %w", err)
	}
	switch res {
	case -1:
		return common.ErrNotFound
	case 0:
		return fmt.Errorf("job %s: %w", job.ID, common.ErrVersionConflict)
	}
	job.Version = next.Version
	return nil
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
