package repositories

import (
	"context"

	"github.com/leo-rullani/backend-video-flix/internal/models"
)

// VideoRepository exposes data access for catalog videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) (models.Video, error)
	Get(ctx context.Context, id int64) (models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
	UpdateMetadata(ctx context.Context, id int64, meta models.VideoMetadata) (models.Video, error)
	Delete(ctx context.Context, id int64) (models.Video, error)
	Exists(ctx context.Context, id int64) (bool, error)
}
