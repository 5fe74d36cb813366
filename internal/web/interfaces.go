package web

import (
	"context"
	"errors"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrNotAuthorized  = errors.New("not authorized")
)

// VideoRecord is the metadata object written once per upload.
type VideoRecord struct {
	ID           string  `json:"id"`
	OwnerID      string  `json:"ownerId"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	UploadedAt   string  `json:"uploadedAt"`
	VideoURL     *string `json:"videoUrl"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	Hearts       int     `json:"hearts"`
	Comments     int     `json:"comments"`
	Views        int     `json:"views"`
}

type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStore is the narrow view of the bucket the service needs.
type ObjectStore interface {
	List(ctx context.Context) ([]ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// URLSigner issues time-limited read URLs for private buckets.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type URLResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type Thumbnailer interface {
	Generate(ctx context.Context, video []byte) ([]byte, error)
}

// ShortsCache holds the unfiltered aggregation result between requests.
type ShortsCache interface {
	Get(ctx context.Context) (*Result, bool)
	Set(ctx context.Context, res Result)
	Invalidate(ctx context.Context)
}

type JobQueue interface {
	Enqueue(ctx context.Context, job SaveJob) error
}

// Uploader is the B2 native upload API used by the upload and uploadProxy routes.
type Uploader interface {
	GetUploadURL(ctx context.Context) (*B2UploadURL, error)
	UploadFile(ctx context.Context, uploadURL, token, key, contentType string, data []byte) (*B2File, error)
}
