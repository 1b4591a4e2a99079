package model

import "time"

// FeedObject is a blob-store read result for a hosted feed artifact.
type FeedObject struct {
	Content     []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	URL         string    `json:"url"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
