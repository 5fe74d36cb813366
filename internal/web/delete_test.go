package web

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deleteFixture() *memStore {
	store := newMemStore()
	store.put("meta-u1-100.json", `{"id":"u1-100","ownerId":"u1","videoUrl":"u1-100-clip.mp4","thumbnailUrl":"thumb-u1-100.png"}`)
	store.put("u1-100-clip.mp4", "video")
	store.put("thumb-u1-100.png", "png")
	store.put("meta-u2-200.json", `{"id":"u2-200","userId":"u2","videoUrl":"`+testBase+`/u2-200-clip.mp4"}`)
	store.put("u2-200-clip.mp4", "video")
	return store
}

func TestDeleteRemovesRecordAndObjects(t *testing.T) {
	store := deleteFixture()
	cache := &memCache{}
	d := &Deleter{Store: store, PublicBase: testBase, Cache: cache}

	require.NoError(t, d.Delete(context.Background(), "u1-100", "u1"))
	assert.False(t, store.has("meta-u1-100.json"))
	assert.False(t, store.has("u1-100-clip.mp4"))
	assert.False(t, store.has("thumb-u1-100.png"))
	assert.True(t, store.has("meta-u2-200.json"))
	assert.Equal(t, 1, cache.invalidated)
}

func TestDeleteAbsoluteVideoURL(t *testing.T) {
	store := deleteFixture()
	d := &Deleter{Store: store, PublicBase: testBase}

	require.NoError(t, d.Delete(context.Background(), "u2-200", "u2"))
	assert.False(t, store.has("meta-u2-200.json"))
	assert.False(t, store.has("u2-200-clip.mp4"))
}

func TestDeleteWrongOwner(t *testing.T) {
	store := deleteFixture()
	d := &Deleter{Store: store, PublicBase: testBase}

	err := d.Delete(context.Background(), "u1-100", "u2")
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.True(t, store.has("meta-u1-100.json"))
	assert.True(t, store.has("u1-100-clip.mp4"))
}

func TestDeleteMissingRecord(t *testing.T) {
	d := &Deleter{Store: deleteFixture(), PublicBase: testBase}
	require.ErrorIs(t, d.Delete(context.Background(), "u9-900", "u9"), ErrObjectNotFound)
}

func TestDeleteRestoresMetadataWhenVideoDeleteFails(t *testing.T) {
	store := deleteFixture()
	store.deleteErr["u1-100-clip.mp4"] = errBoom
	d := &Deleter{Store: store, PublicBase: testBase}

	err := d.Delete(context.Background(), "u1-100", "u1")
	require.ErrorIs(t, err, errBoom)
	assert.True(t, store.has("meta-u1-100.json"))
	assert.True(t, store.has("u1-100-clip.mp4"))
	assert.True(t, store.has("thumb-u1-100.png"))
}

func TestDeleteRecordWithoutID(t *testing.T) {
	store := deleteFixture()
	store.put("meta-u7-700.json", `{"ownerId":"u7","videoUrl":"u7-700-clip.mp4"}`)
	store.put("u7-700-clip.mp4", "video")
	d := &Deleter{Store: store, PublicBase: testBase}

	require.NoError(t, d.Delete(context.Background(), "u7-700", "u7"))
	assert.False(t, store.has("meta-u7-700.json"))
	assert.False(t, store.has("u7-700-clip.mp4"))
}
