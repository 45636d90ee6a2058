package domain

import "time"

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// BlobStore reads and writes named byte blobs. Write fully replaces the blob.
// Read, Stat and Delete return ErrBlobNotFound when the blob does not exist.
type BlobStore interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Stat(name string) (BlobInfo, error)
	List() ([]BlobInfo, error)
	Delete(name string) error
}
