package interfaces

import (
	"context"

	"tube-server/internal/models"
)

// CleanupPublisher publishes events about media objects that are no longer
// referenced and can be removed from the bucket.
type CleanupPublisher interface {
	PublishMediaCleanup(ctx context.Context, event models.MediaCleanupEvent) error
}
