package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Deleter removes a short: its metadata object, video and thumbnail.
type Deleter struct {
	Store      ObjectStore
	PublicBase string
	Cache      ShortsCache
}

// Delete removes the record id on behalf of ownerID. The metadata object goes
// first so the short leaves listings; if the video cannot be removed afterwards
// the metadata is restored, keeping video and record paired.
func (d *Deleter) Delete(ctx context.Context, id, ownerID string) error {
	log := slog.With("id", id, "owner_id", ownerID)
	metaKey := MetadataKeyForID(id)

	raw, err := d.Store.Get(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	rec, err := decodeRecord(metaKey, raw)
	if err != nil {
		return err
	}
	if rec.OwnerID != ownerID {
		log.Warn("delete rejected", "record_owner", rec.OwnerID)
		return ErrNotAuthorized
	}

	var videoKey string
	if rec.VideoURL != nil {
		key, ok := KeyFromURL(*rec.VideoURL, d.PublicBase)
		if !ok {
			return fmt.Errorf("cannot derive video key from %q", *rec.VideoURL)
		}
		videoKey = key
	}

	if err := d.Store.Delete(ctx, metaKey); err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	if d.Cache != nil {
		d.Cache.Invalidate(ctx)
	}

	if videoKey != "" {
		if err := d.Store.Delete(ctx, videoKey); err != nil {
			// Restoring needs a live context even if the request was cancelled.
			restoreErr := d.Store.Put(context.WithoutCancel(ctx), metaKey, raw, "application/json")
			if restoreErr != nil {
				log.Error("failed to restore metadata after video delete failure", "error", restoreErr)
			}
			return errors.Join(fmt.Errorf("failed to delete video %s: %w", videoKey, err), restoreErr)
		}
	}

	if rec.ThumbnailURL != nil {
		if key, ok := KeyFromURL(*rec.ThumbnailURL, d.PublicBase); ok {
			if err := d.Store.Delete(ctx, key); err != nil {
				log.Warn("failed to delete thumbnail", "key", key, "error", err)
			}
		}
	}

	log.Info("short deleted", "video_key", videoKey)
	return nil
}
