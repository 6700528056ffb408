package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pbparthas/enki/internal/api"
	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/service"
)

type ReviewProvider interface {
	Promote(ctx context.Context, candidateID string) (*domain.Item, error)
	PromoteBatch(ctx context.Context, candidateIDs []string) (*service.PromoteBatchOutput, error)
	Discard(ctx context.Context, candidateID string) error
	FlagForDeletion(ctx context.Context, itemID, reason string) (*domain.Item, error)
	Unflag(ctx context.Context, itemID string) (*domain.Item, error)
}

type ItemCurator interface {
	StarItem(ctx context.Context, id string, starred bool) (*domain.Item, error)
	SupersedeItem(ctx context.Context, oldID, newID string) (*domain.Item, error)
}

type DeletionProcessor interface {
	ProcessFlaggedDeletions(ctx context.Context) (map[domain.Category]int, error)
}

type SnapshotExporter interface {
	Export(ctx context.Context) (*service.ExportOutput, error)
}

// ReviewHandler is mounted only behind the reviewer role gate.
type ReviewHandler struct {
	review    ReviewProvider
	curator   ItemCurator
	retention DeletionProcessor
	exporter  SnapshotExporter
}

func NewReviewHandler(review ReviewProvider, curator ItemCurator, retention DeletionProcessor, exporter SnapshotExporter) *ReviewHandler {
	return &ReviewHandler{
		review:    review,
		curator:   curator,
		retention: retention,
		exporter:  exporter,
	}
}

func (h *ReviewHandler) Promote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.review.Promote(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, itemToResponse(item))
}

type PromoteBatchRequest struct {
	CandidateIDs []string `json:"candidate_ids"`
}

type PromoteBatchResponse struct {
	Promoted int      `json:"promoted"`
	Failed   int      `json:"failed"`
	ItemIDs  []string `json:"item_ids,omitempty"`
}

func (h *ReviewHandler) PromoteBatch(w http.ResponseWriter, r *http.Request) {
	var req PromoteBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.CandidateIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "candidate_ids is required")
		return
	}

	out, err := h.review.PromoteBatch(r.Context(), req.CandidateIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &PromoteBatchResponse{
		Promoted: out.Promoted,
		Failed:   out.Failed,
		ItemIDs:  out.ItemIDs,
	})
}

func (h *ReviewHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.review.Discard(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type FlagRequest struct {
	Reason string `json:"reason"`
}

func (h *ReviewHandler) Flag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.review.FlagForDeletion(r.Context(), id, req.Reason)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

func (h *ReviewHandler) Unflag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.review.Unflag(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

type StarRequest struct {
	Starred bool `json:"starred"`
}

func (h *ReviewHandler) Star(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req StarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.curator.StarItem(r.Context(), id, req.Starred)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

type SupersedeRequest struct {
	SupersededBy string `json:"superseded_by"`
}

func (h *ReviewHandler) Supersede(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SupersedeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SupersededBy == "" {
		api.Error(w, http.StatusBadRequest, "superseded_by is required")
		return
	}

	item, err := h.curator.SupersedeItem(r.Context(), id, req.SupersededBy)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

type ProcessDeletionsResponse struct {
	Deleted map[string]int `json:"deleted"`
	Total   int            `json:"total"`
}

// ProcessDeletions runs the flagged-deletion sweep, the only
// irreversible delete in the system.
func (h *ReviewHandler) ProcessDeletions(w http.ResponseWriter, r *http.Request) {
	counts, err := h.retention.ProcessFlaggedDeletions(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &ProcessDeletionsResponse{Deleted: make(map[string]int, len(counts))}
	for category, n := range counts {
		resp.Deleted[string(category)] = n
		resp.Total += n
	}

	api.Success(w, http.StatusOK, resp)
}

type ExportResponse struct {
	Key         string `json:"key"`
	ItemCount   int    `json:"item_count"`
	DownloadURL string `json:"download_url"`
}

func (h *ReviewHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		api.Error(w, http.StatusNotImplemented, "snapshot storage is not configured")
		return
	}

	out, err := h.exporter.Export(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &ExportResponse{
		Key:         out.Key,
		ItemCount:   out.ItemCount,
		DownloadURL: out.DownloadURL,
	})
}
