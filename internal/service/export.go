package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pbparthas/enki/internal/domain"
	"github.com/pbparthas/enki/internal/pagination"
	"github.com/pbparthas/enki/internal/telemetry"
)

// SnapshotUploader is the storage side of snapshot export, satisfied
// by storage.S3Client.
type SnapshotUploader interface {
	PutObject(ctx context.Context, key string, contentType string, body []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// ExportService serializes the full content store to JSON and uploads
// it to object storage. Reviewer-gated: snapshots expose everything,
// including flagged items.
type ExportService struct {
	itemRepo ItemRepositoryInterface
	uploader SnapshotUploader
	now      func() time.Time
}

func NewExportService(itemRepo ItemRepositoryInterface, uploader SnapshotUploader) *ExportService {
	return &ExportService{
		itemRepo: itemRepo,
		uploader: uploader,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot is the export file layout.
type Snapshot struct {
	ExportedAt time.Time      `json:"exported_at"`
	ItemCount  int            `json:"item_count"`
	Items      []*domain.Item `json:"items"`
}

// ExportOutput reports where the snapshot landed.
type ExportOutput struct {
	Key         string
	ItemCount   int
	DownloadURL string
}

// Export walks every item page by page, uploads the snapshot and
// returns a presigned download URL.
func (s *ExportService) Export(ctx context.Context) (*ExportOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ExportService.Export", telemetry.SpanAttributes{
		Operation: "export",
	})
	defer span.End()

	if s.uploader == nil {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "snapshot storage is not configured")
	}

	var items []*domain.Item
	var cursor *pagination.Cursor
	for {
		page, next, err := s.itemRepo.ListWithCursor(ctx, "", cursor, 500)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if next == "" {
			break
		}
		decoded, err := pagination.DecodeCursor(next)
		if err != nil {
			return nil, err
		}
		cursor = decoded
	}

	now := s.now()
	snapshot := Snapshot{
		ExportedAt: now,
		ItemCount:  len(items),
		Items:      items,
	}
	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	key := fmt.Sprintf("snapshots/%s.json", now.Format("2006-01-02T15-04-05Z"))
	if err := s.uploader.PutObject(ctx, key, "application/json", body); err != nil {
		return nil, err
	}

	url, err := s.uploader.GenerateDownloadURL(ctx, key)
	if err != nil {
		return nil, err
	}

	return &ExportOutput{
		Key:         key,
		ItemCount:   len(items),
		DownloadURL: url,
	}, nil
}
