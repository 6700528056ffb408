package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pbparthas/enki/internal/api"
	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/service"
)

type StagingService interface {
	AddCandidate(ctx context.Context, input service.AddCandidateInput) (*domain.Candidate, error)
	GetCandidate(ctx context.Context, id string) (*domain.Candidate, error)
	ListCandidates(ctx context.Context, input service.ListCandidatesInput) (*service.ListCandidatesOutput, error)
}

type CandidateHandler struct {
	staging StagingService
}

func NewCandidateHandler(staging StagingService) *CandidateHandler {
	return &CandidateHandler{staging: staging}
}

type AddCandidateRequest struct {
	Content   string `json:"content"`
	Category  string `json:"category"`
	Project   string `json:"project"`
	Summary   string `json:"summary"`
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

type CandidateResponse struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	Category    string `json:"category"`
	Project     string `json:"project,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Source      string `json:"source"`
	SessionID   string `json:"session_id,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func candidateToResponse(c *domain.Candidate) *CandidateResponse {
	return &CandidateResponse{
		ID:          c.ID,
		Content:     c.Content,
		ContentHash: c.ContentHash,
		Category:    string(c.Category),
		Project:     c.Project,
		Summary:     c.Summary,
		Source:      c.Source,
		SessionID:   c.SessionID,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

func (h *CandidateHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Category == "" {
		api.Error(w, http.StatusBadRequest, "category is required")
		return
	}
	if req.Source == "" {
		api.Error(w, http.StatusBadRequest, "source is required")
		return
	}

	candidate, err := h.staging.AddCandidate(r.Context(), service.AddCandidateInput{
		Content:   req.Content,
		Category:  domain.Category(req.Category),
		Project:   req.Project,
		Summary:   req.Summary,
		Source:    req.Source,
		SessionID: req.SessionID,
	})
	if err != nil {
		// Duplicate content is a dedup outcome, not a failure mode.
		if errors.Is(err, domain.ErrDuplicateContent) {
			api.Error(w, http.StatusConflict, "content already known")
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, candidateToResponse(candidate))
}

func (h *CandidateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	candidate, err := h.staging.GetCandidate(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, candidateToResponse(candidate))
}

type ListCandidatesResponse struct {
	Candidates []*CandidateResponse `json:"candidates"`
	NextCursor string               `json:"next_cursor,omitempty"`
	HasMore    bool                 `json:"has_more"`
}

func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.staging.ListCandidates(r.Context(), service.ListCandidatesInput{
		Project:  r.URL.Query().Get("project"),
		Category: domain.Category(r.URL.Query().Get("category")),
		Cursor:   r.URL.Query().Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &ListCandidatesResponse{
		Candidates: make([]*CandidateResponse, 0, len(out.Candidates)),
		NextCursor: out.NextCursor,
		HasMore:    out.HasMore,
	}
	for _, c := range out.Candidates {
		resp.Candidates = append(resp.Candidates, candidateToResponse(c))
	}

	api.Success(w, http.StatusOK, resp)
}
