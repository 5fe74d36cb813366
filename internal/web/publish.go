package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// SaveJob describes one metadata write. Its ID and Timestamp are fixed when the
// job is created so a queued job produces the same keys wherever it runs.
type SaveJob struct {
	ID          string `json:"id"`
	OwnerID     string `json:"ownerId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VideoKey    string `json:"videoKey"`
	Timestamp   int64  `json:"timestamp"`
}

func NewSaveJob(ownerID, videoKey, title, description string, now time.Time) SaveJob {
	ts := now.UnixMilli()
	return SaveJob{
		ID:          RecordID(ownerID, ts),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		VideoKey:    videoKey,
		Timestamp:   ts,
	}
}

// Publisher turns an uploaded video into a listed short: thumbnail plus metadata.
type Publisher struct {
	Store      ObjectStore
	Thumbnails Thumbnailer
	Resolver   URLResolver
	Cache      ShortsCache
}

// Publish writes the thumbnail and metadata objects for job and returns the
// record with its URLs resolved. A missing video yields ErrObjectNotFound.
func (p *Publisher) Publish(ctx context.Context, job SaveJob) (*VideoRecord, error) {
	log := slog.With("id", job.ID, "owner_id", job.OwnerID, "video_key", job.VideoKey)

	video, err := p.Store.Get(ctx, job.VideoKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch uploaded video: %w", err)
	}

	videoKey := job.VideoKey
	rec := VideoRecord{
		ID:          job.ID,
		OwnerID:     job.OwnerID,
		Title:       job.Title,
		Description: job.Description,
		UploadedAt:  time.UnixMilli(job.Timestamp).UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		VideoURL:    &videoKey,
	}

	if thumbKey, err := p.writeThumbnail(ctx, job, video); err != nil {
		// The short is still playable without a thumbnail.
		log.Warn("thumbnail generation failed", "error", err)
	} else {
		rec.ThumbnailURL = &thumbKey
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	metaKey := MetadataKey(job.OwnerID, job.Timestamp)
	if err := p.Store.Put(ctx, metaKey, data, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	log.Info("metadata saved", "key", metaKey)

	if p.Cache != nil {
		p.Cache.Invalidate(ctx)
	}

	rec.VideoURL = normalizeURL(ctx, p.Resolver, rec.VideoURL, log)
	rec.ThumbnailURL = normalizeURL(ctx, p.Resolver, rec.ThumbnailURL, log)
	return &rec, nil
}

func (p *Publisher) writeThumbnail(ctx context.Context, job SaveJob, video []byte) (string, error) {
	if p.Thumbnails == nil {
		return "", fmt.Errorf("no thumbnailer configured")
	}
	thumb, err := p.Thumbnails.Generate(ctx, video)
	if err != nil {
		return "", err
	}
	key := ThumbnailKey(job.OwnerID, job.Timestamp)
	if err := p.Store.Put(ctx, key, thumb, "image/png"); err != nil {
		return "", err
	}
	return key, nil
}
