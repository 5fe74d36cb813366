package web

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

const defaultFetchConcurrency = 16

// Result is one aggregation pass. Skipped counts metadata objects that could not
// be fetched or decoded.
type Result struct {
	Shorts  []VideoRecord `json:"shorts"`
	Skipped int           `json:"skipped"`
}

// Aggregator builds the newest-first listing of every video record in the bucket.
type Aggregator struct {
	Store       ObjectStore
	Resolver    URLResolver
	Concurrency int
	Cache       ShortsCache
}

// Aggregate lists the bucket and returns the records owned by ownerID, or every
// record when ownerID is empty. Only a listing failure is returned as an error.
func (a *Aggregator) Aggregate(ctx context.Context, ownerID string) (Result, error) {
	res, err := a.all(ctx)
	if err != nil {
		return Result{}, err
	}
	if ownerID == "" {
		return res, nil
	}

	filtered := make([]VideoRecord, 0, len(res.Shorts))
	for _, rec := range res.Shorts {
		if rec.OwnerID == ownerID {
			filtered = append(filtered, rec)
		}
	}
	return Result{Shorts: filtered, Skipped: res.Skipped}, nil
}

func (a *Aggregator) all(ctx context.Context) (Result, error) {
	if a.Cache != nil {
		if res, ok := a.Cache.Get(ctx); ok {
			return *res, nil
		}
	}

	objects, err := a.Store.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list bucket: %w", err)
	}

	var keys []string
	for _, obj := range objects {
		if IsMetadataKey(obj.Key) {
			keys = append(keys, obj.Key)
		}
	}
	slog.Debug("listed bucket", "objects", len(objects), "metadata_keys", len(keys))

	records := make([]*VideoRecord, len(keys))
	limit := a.Concurrency
	if limit <= 0 {
		limit = defaultFetchConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, key := range keys {
		g.Go(func() error {
			records[i] = a.fetch(ctx, key)
			return nil
		})
	}
	// fetch never fails the group; Wait is only the barrier.
	_ = g.Wait()

	res := Result{Shorts: make([]VideoRecord, 0, len(records))}
	for _, rec := range records {
		if rec == nil {
			res.Skipped++
			continue
		}
		res.Shorts = append(res.Shorts, *rec)
	}
	sortNewestFirst(res.Shorts)

	if a.Cache != nil && ctx.Err() == nil {
		a.Cache.Set(ctx, res)
	}
	return res, nil
}

func (a *Aggregator) fetch(ctx context.Context, key string) *VideoRecord {
	log := slog.With("key", key)

	data, err := a.Store.Get(ctx, key)
	if err != nil {
		log.Warn("skipping metadata object", "reason", "fetch", "error", err)
		return nil
	}
	rec, err := decodeRecord(key, data)
	if err != nil {
		log.Warn("skipping metadata object", "reason", "decode", "error", err)
		return nil
	}

	rec.VideoURL = normalizeURL(ctx, a.Resolver, rec.VideoURL, log)
	rec.ThumbnailURL = normalizeURL(ctx, a.Resolver, rec.ThumbnailURL, log)
	return rec
}

func sortNewestFirst(records []VideoRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedTime().After(records[j].UploadedTime())
	})
}
