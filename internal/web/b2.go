package web

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// B2Error is a non-2xx answer from the B2 native API.
type B2Error struct {
	Op     string
	Status int
	Body   string
}

func (e *B2Error) Error() string {
	return fmt.Sprintf("b2 %s failed: %d %s", e.Op, e.Status, strings.TrimSpace(e.Body))
}

type B2Authorization struct {
	AccountID          string `json:"accountId"`
	AuthorizationToken string `json:"authorizationToken"`
	APIURL             string `json:"apiUrl"`
	DownloadURL        string `json:"downloadUrl"`
}

type B2UploadURL struct {
	BucketID           string `json:"bucketId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

type B2File struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

// B2Authorizer caches the b2_authorize_account response until its TTL runs out
// and refreshes it on the next call after that. Safe for concurrent use.
type B2Authorizer struct {
	httpClient *http.Client
	apiURL     string
	keyID      string
	secret     string
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	cached  *B2Authorization
	expires time.Time
}

func NewB2Authorizer(httpClient *http.Client, apiURL, keyID, secret string, ttl time.Duration) *B2Authorizer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &B2Authorizer{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
		keyID:      keyID,
		secret:     secret,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (a *B2Authorizer) Authorize(ctx context.Context) (*B2Authorization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && a.now().Before(a.expires) {
		return a.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"/b2api/v2/b2_authorize_account", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(a.keyID, a.secret)

	var auth B2Authorization
	if err := doB2(a.httpClient, req, "authorize_account", &auth); err != nil {
		return nil, err
	}

	a.cached = &auth
	a.expires = a.now().Add(a.ttl)
	slog.Info("b2 account authorized", "api_url", auth.APIURL, "expires", a.expires)
	return a.cached, nil
}

// Invalidate drops the cached authorization, e.g. after the API rejects it.
func (a *B2Authorizer) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}

type B2Client struct {
	httpClient *http.Client
	auth       *B2Authorizer
	bucketID   string
}

func NewB2Client(httpClient *http.Client, auth *B2Authorizer, bucketID string) *B2Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &B2Client{httpClient: httpClient, auth: auth, bucketID: bucketID}
}

// GetUploadURL asks B2 for an upload target. An expired token is refreshed and the
// call retried once.
func (c *B2Client) GetUploadURL(ctx context.Context) (*B2UploadURL, error) {
	for attempt := 0; ; attempt++ {
		out, err := c.getUploadURL(ctx)
		var b2Err *B2Error
		if attempt == 0 && errors.As(err, &b2Err) && b2Err.Status == http.StatusUnauthorized {
			slog.Warn("b2 authorization rejected, refreshing")
			c.auth.Invalidate()
			continue
		}
		return out, err
	}
}

func (c *B2Client) getUploadURL(ctx context.Context) (*B2UploadURL, error) {
	auth, err := c.auth.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{"bucketId": c.bucketID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.APIURL+"/b2api/v2/b2_get_upload_url", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", auth.AuthorizationToken)
	req.Header.Set("Content-Type", "application/json")

	var out B2UploadURL
	if err := doB2(c.httpClient, req, "get_upload_url", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile sends data to an upload URL previously handed out by GetUploadURL.
func (c *B2Client) UploadFile(ctx context.Context, uploadURL, token, key, contentType string, data []byte) (*B2File, error) {
	sum := sha1.Sum(data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Authorization", token)
	req.Header.Set("X-Bz-File-Name", strings.ReplaceAll(url.QueryEscape(key), "+", "%20"))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Bz-Content-Sha1", hex.EncodeToString(sum[:]))

	var out B2File
	if err := doB2(c.httpClient, req, "upload_file", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func doB2(client *http.Client, req *http.Request, op string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("b2 %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("b2 %s: failed to read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &B2Error{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("b2 %s: invalid response: %w", op, err)
	}
	return nil
}

var _ Uploader = (*B2Client)(nil)
