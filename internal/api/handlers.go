package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maltedev/business-registry-scraper/internal/jobs"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

// Scraper is satisfied by the pipeline orchestrator.
type Scraper interface {
	Search(ctx context.Context, query string) []models.SummaryRecord
	Lookup(ctx context.Context, url string) *models.DetailRecord
	StrategyName() string
}

// BacklogFunc reports outbox events awaiting relay and dead-lettered ones.
type BacklogFunc func(ctx context.Context) (pending, deadLetter int64, err error)

const (
	backlogWarnThreshold = 1000
	deadLetterErrorCount = 100
	maxRequestBodyBytes  = 1 << 20
)

type Handlers struct {
	scraper  Scraper
	enqueuer jobs.Enqueuer
	backlog  BacklogFunc
	logger   *slog.Logger
}

// NewHandlers wires the API. enqueuer and backlog may be nil.
func NewHandlers(scraper Scraper, enqueuer jobs.Enqueuer, backlog BacklogFunc, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:  scraper,
		enqueuer: enqueuer,
		backlog:  backlog,
		logger:   logger.With("component", "api"),
	}
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchResponse struct {
	Query    string                 `json:"query"`
	Count    int                    `json:"count"`
	Records  []models.SummaryRecord `json:"records"`
	Strategy string                 `json:"strategy"`
}

// Search runs a synchronous name search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	records := h.scraper.Search(r.Context(), req.Query)
	h.respondJSON(w, http.StatusOK, SearchResponse{
		Query:    req.Query,
		Count:    len(records),
		Records:  records,
		Strategy: h.scraper.StrategyName(),
	})
}

type LookupRequest struct {
	URL string `json:"url"`
}

type LookupResponse struct {
	URL      string               `json:"url"`
	Found    bool                 `json:"found"`
	Detail   *models.DetailRecord `json:"detail"`
	Strategy string               `json:"strategy"`
}

// Lookup fetches one entity's detail record. A miss is 200 with found=false.
func (h *Handlers) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	detail := h.scraper.Lookup(r.Context(), req.URL)
	h.respondJSON(w, http.StatusOK, LookupResponse{
		URL:      req.URL,
		Found:    detail != nil,
		Detail:   detail,
		Strategy: h.scraper.StrategyName(),
	})
}

type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateJob queues a search or detail job for the consumer.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		h.respondError(w, http.StatusServiceUnavailable, "job queue is not configured")
		return
	}

	var job models.Job
	if !h.decode(w, r, &job) {
		return
	}

	id, err := h.enqueuer.Enqueue(r.Context(), &job)
	if errors.Is(err, models.ErrInvalidJob) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to enqueue job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateJobResponse{JobID: id, Status: "queued"})
}

// Health reports liveness and, with an outbox sink, the relay backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":   "ok",
		"strategy": h.scraper.StrategyName(),
	}
	status := http.StatusOK

	if h.backlog != nil {
		pending, dead, err := h.backlog(r.Context())
		switch {
		case err != nil:
			h.logger.Warn("failed to read outbox backlog", "error", err)
			health["status"] = "degraded"
			health["message"] = "outbox backlog unavailable"
		default:
			health["outbox"] = map[string]int64{"pending": pending, "dead_letter": dead}
			if pending > backlogWarnThreshold {
				health["status"] = "warning"
				health["message"] = "high number of pending outbox events"
			}
			if dead > deadLetterErrorCount {
				health["status"] = "error"
				health["message"] = "high number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
