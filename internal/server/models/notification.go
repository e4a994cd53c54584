package models

// Notification is one object-created event delivered by the event source.
// Delivery is at-least-once: duplicates and reordering across keys are
// expected and must be safe.
type Notification struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	ETag   string `json:"etag"`
}
