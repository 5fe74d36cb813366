package web

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, IsAbsoluteURL("https://cdn/v.mp4"))
	assert.True(t, IsAbsoluteURL("HTTP://cdn/v.mp4"))
	assert.False(t, IsAbsoluteURL("v.mp4"))
	assert.False(t, IsAbsoluteURL("/v.mp4"))
	assert.False(t, IsAbsoluteURL("httpfoo.mp4"))
}

func TestPublicURLResolver(t *testing.T) {
	r := PublicURLResolver{Base: testBase + "/"}

	u, err := r.Resolve(context.Background(), "/u1-1-my clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, testBase+"/u1-1-my%20clip.mp4", u)

	u, err = r.Resolve(context.Background(), "dir/v.mp4")
	require.NoError(t, err)
	assert.Equal(t, testBase+"/dir/v.mp4", u)

	_, err = PublicURLResolver{}.Resolve(context.Background(), "v.mp4")
	assert.Error(t, err)
}

func TestNormalizeURL(t *testing.T) {
	log := slog.Default()
	r := PublicURLResolver{Base: testBase}
	str := func(s string) *string { return &s }

	assert.Nil(t, normalizeURL(context.Background(), r, nil, log))
	assert.Nil(t, normalizeURL(context.Background(), r, str("   "), log))
	assert.Equal(t, "https://cdn/v.mp4", *normalizeURL(context.Background(), r, str(" https://cdn/v.mp4\n"), log))
	assert.Equal(t, testBase+"/v.mp4", *normalizeURL(context.Background(), r, str("v.mp4"), log))
	assert.Nil(t, normalizeURL(context.Background(), nil, str("v.mp4"), log))
}

func TestKeyFromURL(t *testing.T) {
	cases := []struct {
		ref string
		key string
		ok  bool
	}{
		{"u1-1-clip.mp4", "u1-1-clip.mp4", true},
		{testBase + "/u1-1-my%20clip.mp4", "u1-1-my clip.mp4", true},
		{testBase + "/u1-1-clip.mp4?X-Amz-Signature=abc", "u1-1-clip.mp4", true},
		{"https://f003.backblazeb2.com/file/Lizard/u1-1-clip.mp4", "u1-1-clip.mp4", true},
		{"https://cdn.example/elsewhere.mp4", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		key, ok := KeyFromURL(c.ref, testBase)
		assert.Equal(t, c.ok, ok, c.ref)
		assert.Equal(t, c.key, key, c.ref)
	}
}
