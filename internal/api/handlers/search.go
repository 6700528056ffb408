package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pbparthas/enki/internal/api"
	"github.com/pbparthas/enki/internal/service"
)

type SearchProvider interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	search SearchProvider
}

func NewSearchHandler(search SearchProvider) *SearchHandler {
	return &SearchHandler{search: search}
}

type SearchResultResponse struct {
	Item       *ItemResponse `json:"item"`
	RawScore   float64       `json:"raw_score"`
	FinalScore float64       `json:"final_score"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	minScore := 0.0
	if raw := q.Get("min_score"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		minScore = parsed
	}

	out, err := h.search.Search(r.Context(), service.SearchInput{
		Query:    q.Get("q"),
		Project:  q.Get("project"),
		Scope:    service.Scope(q.Get("scope")),
		Limit:    limit,
		MinScore: minScore,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &SearchResponse{Results: make([]*SearchResultResponse, 0, len(out.Results))}
	for _, result := range out.Results {
		resp.Results = append(resp.Results, &SearchResultResponse{
			Item:       itemToResponse(result.Item),
			RawScore:   result.RawScore,
			FinalScore: result.FinalScore,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
