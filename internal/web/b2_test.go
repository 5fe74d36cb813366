package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeB2 serves the three native endpoints the client uses.
type fakeB2 struct {
	srv         *httptest.Server
	authorizes  atomic.Int32
	rejectNext  atomic.Bool
	lastHeaders http.Header
	lastBody    []byte
}

func newFakeB2(t *testing.T) *fakeB2 {
	f := &fakeB2{}
	mux := http.NewServeMux()
	mux.HandleFunc("/b2api/v2/b2_authorize_account", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key-id" || pass != "secret" {
			http.Error(w, `{"code":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		n := f.authorizes.Add(1)
		json.NewEncoder(w).Encode(B2Authorization{
			AccountID:          "acct",
			AuthorizationToken: "tok-" + string(rune('0'+n)),
			APIURL:             f.srv.URL,
			DownloadURL:        f.srv.URL,
		})
	})
	mux.HandleFunc("/b2api/v2/b2_get_upload_url", func(w http.ResponseWriter, r *http.Request) {
		if f.rejectNext.CompareAndSwap(true, false) {
			http.Error(w, `{"code":"expired_auth_token"}`, http.StatusUnauthorized)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(B2UploadURL{
			BucketID:           body["bucketId"],
			UploadURL:          f.srv.URL + "/upload",
			AuthorizationToken: "upload-" + r.Header.Get("Authorization"),
		})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		f.lastHeaders = r.Header.Clone()
		f.lastBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(B2File{FileID: "file-1", FileName: r.Header.Get("X-Bz-File-Name")})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func TestB2AuthorizerCachesUntilExpiry(t *testing.T) {
	f := newFakeB2(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	auth := NewB2Authorizer(nil, f.srv.URL, "key-id", "secret", time.Hour)
	auth.now = func() time.Time { return now }

	a1, err := auth.Authorize(context.Background())
	require.NoError(t, err)
	a2, err := auth.Authorize(context.Background())
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Equal(t, int32(1), f.authorizes.Load())

	now = now.Add(59 * time.Minute)
	_, err = auth.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.authorizes.Load())

	now = now.Add(2 * time.Minute)
	a3, err := auth.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.authorizes.Load())
	assert.Equal(t, "tok-2", a3.AuthorizationToken)
}

func TestB2AuthorizerBadCredentials(t *testing.T) {
	f := newFakeB2(t)
	auth := NewB2Authorizer(nil, f.srv.URL, "key-id", "wrong", time.Hour)

	_, err := auth.Authorize(context.Background())
	var b2Err *B2Error
	require.ErrorAs(t, err, &b2Err)
	assert.Equal(t, http.StatusUnauthorized, b2Err.Status)
	assert.Equal(t, "authorize_account", b2Err.Op)
}

func TestB2GetUploadURL(t *testing.T) {
	f := newFakeB2(t)
	client := NewB2Client(nil, NewB2Authorizer(nil, f.srv.URL, "key-id", "secret", time.Hour), "bucket-1")

	target, err := client.GetUploadURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bucket-1", target.BucketID)
	assert.Equal(t, f.srv.URL+"/upload", target.UploadURL)
	assert.Equal(t, "upload-tok-1", target.AuthorizationToken)
}

func TestB2GetUploadURLRefreshesRejectedToken(t *testing.T) {
	f := newFakeB2(t)
	client := NewB2Client(nil, NewB2Authorizer(nil, f.srv.URL, "key-id", "secret", time.Hour), "bucket-1")

	_, err := client.GetUploadURL(context.Background())
	require.NoError(t, err)

	f.rejectNext.Store(true)
	target, err := client.GetUploadURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.authorizes.Load())
	assert.Equal(t, "upload-tok-2", target.AuthorizationToken)
}

func TestB2UploadFile(t *testing.T) {
	f := newFakeB2(t)
	client := NewB2Client(nil, NewB2Authorizer(nil, f.srv.URL, "key-id", "secret", time.Hour), "bucket-1")

	file, err := client.UploadFile(context.Background(), f.srv.URL+"/upload", "up-tok", "u1-1-my clip+1.mp4", "video/mp4", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "file-1", file.FileID)

	assert.Equal(t, "up-tok", f.lastHeaders.Get("Authorization"))
	assert.Equal(t, "u1-1-my%20clip%2B1.mp4", f.lastHeaders.Get("X-Bz-File-Name"))
	assert.Equal(t, "video/mp4", f.lastHeaders.Get("Content-Type"))
	// sha1("hello")
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", f.lastHeaders.Get("X-Bz-Content-Sha1"))
	assert.Equal(t, "hello", string(f.lastBody))
}

func TestB2ErrorMessage(t *testing.T) {
	err := &B2Error{Op: "upload_file", Status: 503, Body: "busy\n"}
	assert.Equal(t, "b2 upload_file failed: 503 busy", err.Error())
}
