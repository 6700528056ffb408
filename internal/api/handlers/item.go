package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pbparthas/enki/internal/api"
	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/service"
)

type ContentStoreService interface {
	CreateItem(ctx context.Context, input service.CreateItemInput) (*service.CreateItemOutput, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	UpdateItem(ctx context.Context, input service.UpdateItemInput) (*domain.Item, error)
	ListItems(ctx context.Context, input service.ListItemsInput) (*service.ListItemsOutput, error)
}

type WeightRefresher interface {
	RefreshWeight(ctx context.Context, id string) error
}

type ItemHandler struct {
	store     ContentStoreService
	retention WeightRefresher
}

func NewItemHandler(store ContentStoreService, retention WeightRefresher) *ItemHandler {
	return &ItemHandler{store: store, retention: retention}
}

type CreateItemRequest struct {
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Project  string   `json:"project"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Context  string   `json:"context"`
}

type UpdateItemRequest struct {
	Content *string   `json:"content"`
	Summary *string   `json:"summary"`
	Tags    *[]string `json:"tags"`
	Context *string   `json:"context"`
	Project *string   `json:"project"`
}

type ItemResponse struct {
	ID                 string   `json:"id"`
	Content            string   `json:"content"`
	ContentHash        string   `json:"content_hash"`
	Category           string   `json:"category"`
	Project            string   `json:"project,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Context            string   `json:"context,omitempty"`
	Weight             float64  `json:"weight"`
	Starred            bool     `json:"starred"`
	CreatedAt          string   `json:"created_at"`
	LastAccessed       string   `json:"last_accessed,omitempty"`
	SupersededBy       string   `json:"superseded_by,omitempty"`
	PromotedAt         string   `json:"promoted_at,omitempty"`
	FlaggedForDeletion bool     `json:"flagged_for_deletion"`
	FlagReason         string   `json:"flag_reason,omitempty"`
}

func itemToResponse(item *domain.Item) *ItemResponse {
	resp := &ItemResponse{
		ID:                 item.ID,
		Content:            item.Content,
		ContentHash:        item.ContentHash,
		Category:           string(item.Category),
		Project:            item.Project,
		Summary:            item.Summary,
		Tags:               item.Tags,
		Context:            item.Context,
		Weight:             item.Weight,
		Starred:            item.Starred,
		CreatedAt:          item.CreatedAt.Format(time.RFC3339),
		FlaggedForDeletion: item.FlaggedForDeletion,
		FlagReason:         item.FlagReason,
	}
	if item.LastAccessed != nil {
		resp.LastAccessed = item.LastAccessed.Format(time.RFC3339)
	}
	if item.SupersededBy != nil {
		resp.SupersededBy = *item.SupersededBy
	}
	if item.PromotedAt != nil {
		resp.PromotedAt = item.PromotedAt.Format(time.RFC3339)
	}
	return resp
}

// Create stores a preference item directly. Other categories must be
// staged and promoted.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
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

	out, err := h.store.CreateItem(r.Context(), service.CreateItemInput{
		Content:  req.Content,
		Category: domain.Category(req.Category),
		Project:  req.Project,
		Summary:  req.Summary,
		Tags:     req.Tags,
		Context:  req.Context,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusCreated
	if out.Existed {
		status = http.StatusOK
	}
	api.Success(w, status, itemToResponse(out.Item))
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.store.UpdateItem(r.Context(), service.UpdateItemInput{
		ItemID:  id,
		Content: req.Content,
		Summary: req.Summary,
		Tags:    req.Tags,
		Context: req.Context,
		Project: req.Project,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

// Refresh resets an item's weight to 1.0 and stamps the recall.
func (h *ItemHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.retention.RefreshWeight(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	item, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

type ListItemsResponse struct {
	Items      []*ItemResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.store.ListItems(r.Context(), service.ListItemsInput{
		Project: r.URL.Query().Get("project"),
		Cursor:  r.URL.Query().Get("cursor"),
		Limit:   limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &ListItemsResponse{
		Items:      make([]*ItemResponse, 0, len(out.Items)),
		NextCursor: out.NextCursor,
		HasMore:    out.HasMore,
	}
	for _, item := range out.Items {
		resp.Items = append(resp.Items, itemToResponse(item))
	}

	api.Success(w, http.StatusOK, resp)
}
