package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"weathergen/internal/app/service"
	"weathergen/internal/common"
	"weathergen/internal/domain/model"
	"weathergen/internal/platform/storage"
)

type JobHandler struct {
	jobService    *service.JobService
	artifactStore *storage.LocalStore
}

func NewJobHandler(jobService *service.JobService, artifactStore *storage.LocalStore) *JobHandler {
	return &JobHandler{jobService: jobService, artifactStore: artifactStore}
}

func (h *JobHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.StartJob)
	r.Get("/{jobID}", h.GetJobStatus)
}

type StartJobResponse struct {
	JobID     string `json:"job_id"`
	Message   string `json:"message"`
	StatusURL string `json:"status_url"`
}

type JobStatusResponse struct {
	JobID              string     `json:"job_id"`
	Status             string     `json:"status"`
	TotalUnits         int        `json:"total_units"`
	ProcessedUnits     int        `json:"processed_units"`
	FailedUnits        int        `json:"failed_units"`
	ProgressPercentage int        `json:"progress_percentage"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ImageURLs          []string   `json:"image_urls"`
	ErrorMessage       string     `json:"error_message,omitempty"`
}

func (h *JobHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobService.CreateJob(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	common.RespondWithJSON(w, http.StatusAccepted, StartJobResponse{
		JobID:     job.ID,
		Message:   "Job created successfully",
		StatusURL: fmt.Sprintf("%s://%s/api/v1/jobs/%s", scheme, r.Host, job.ID),
	})
}

func (h *JobHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := h.jobService.GetJob(r.Context(), jobID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	common.RespondWithJSON(w, http.StatusOK, h.toResponse(job))
}

func (h *JobHandler) toResponse(job *model.JobRecord) JobStatusResponse {
	now := time.Now()
	urls := make([]string, 0, len(job.ArtifactRefs))
	for _, ref := range job.ArtifactRefs {
		urls = append(urls, h.artifactStore.SignedURL(ref, now))
	}
	return JobStatusResponse{
		JobID:              job.ID,
		Status:             string(job.Status),
		TotalUnits:         job.TotalUnits,
		ProcessedUnits:     job.ProcessedUnits,
		FailedUnits:        job.FailedUnits,
		ProgressPercentage: job.ProgressPercentage(),
		CreatedAt:          job.CreatedAt,
		CompletedAt:        job.CompletedAt,
		ImageURLs:          urls,
		ErrorMessage:       job.ErrorMessage,
	}
}
