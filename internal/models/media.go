package models

import "time"

// MediaCleanupEvent is published when a stored media object was replaced and
// its old URL can be deleted from the bucket by the cleanup worker.
type MediaCleanupEvent struct {
	UserID     string    `json:"userId"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind"` // "avatar" или "cover_image"
	ReplacedAt time.Time `json:"replacedAt"`
}
