package file

import "time"

// File is the metadata of an uploaded file; its content lives in a BlobStore.
type File struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	OriginalFilename string    `json:"original_filename"`
	StoredPath       string    `json:"-"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"created_at"` // UTC
}
