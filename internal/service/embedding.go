package service

import (
	"context"
	"fmt"
	"strings"
)

// EmbeddingService generates and stores item embeddings. It is driven
// by the background worker, never by request handlers.
type EmbeddingService struct {
	client EmbeddingClient
	repo   ItemRepositoryInterface
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, repo ItemRepositoryInterface) *EmbeddingService {
	return &EmbeddingService{client: client, repo: repo}
}

// GenerateEmbedding generates and stores an embedding for the given
// item ID.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, itemID string) error {
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}

	parts := []string{item.Content}
	if item.Summary != "" {
		parts = append(parts, item.Summary)
	}
	if item.Context != "" {
		parts = append(parts, item.Context)
	}
	text := strings.Join(parts, "\n\n")

	embedding, err := s.client.GenerateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	return s.repo.UpdateEmbedding(ctx, itemID, embedding)
}
