package repositories

import (
	"context"

	"github.com/videotube/backend/internal/models"
)

// VideoRepository exposes data access for content records.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	// FindByIDs returns the videos that still exist; missing ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]models.Video, error)
}
