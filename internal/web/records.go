package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	metadataPrefix = "meta-"
	metadataSuffix = ".json"
	thumbPrefix    = "thumb-"
)

var uploadedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func RecordID(ownerID string, ts int64) string {
	return fmt.Sprintf("%s-%d", ownerID, ts)
}

func MetadataKey(ownerID string, ts int64) string {
	return MetadataKeyForID(RecordID(ownerID, ts))
}

func MetadataKeyForID(id string) string {
	return metadataPrefix + id + metadataSuffix
}

func ThumbnailKey(ownerID string, ts int64) string {
	return fmt.Sprintf("%s%s-%d.png", thumbPrefix, ownerID, ts)
}

func UploadKey(ownerID string, ts int64, filename string) string {
	return fmt.Sprintf("%s-%d-%s", ownerID, ts, filename)
}

// IsMetadataKey reports whether key follows the meta-{ownerId}-{timestamp}.json
// convention. Other historical layouts in the bucket are ignored.
func IsMetadataKey(key string) bool {
	return len(key) > len(metadataPrefix)+len(metadataSuffix) &&
		strings.HasPrefix(key, metadataPrefix) &&
		strings.HasSuffix(key, metadataSuffix)
}

// UploadedTime parses uploadedAt. Unparseable values yield the zero time so they
// sort as the oldest records.
func (v *VideoRecord) UploadedTime() time.Time {
	s := strings.TrimSpace(v.UploadedAt)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range uploadedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// UnmarshalJSON accepts records written by older uploaders: the owner may sit
// under userId, ids may be numbers, and any field of an unexpected type is
// dropped instead of failing the record. Only a body that is not a JSON object
// is an error.
func (v *VideoRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID           json.RawMessage `json:"id"`
		OwnerID      json.RawMessage `json:"ownerId"`
		UserID       json.RawMessage `json:"userId"`
		Title        json.RawMessage `json:"title"`
		Description  json.RawMessage `json:"description"`
		UploadedAt   json.RawMessage `json:"uploadedAt"`
		VideoURL     json.RawMessage `json:"videoUrl"`
		ThumbnailURL json.RawMessage `json:"thumbnailUrl"`
		Hearts       json.RawMessage `json:"hearts"`
		Comments     json.RawMessage `json:"comments"`
		Views        json.RawMessage `json:"views"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	owner := scalarField(aux.OwnerID)
	if owner == "" {
		owner = scalarField(aux.UserID)
	}

	*v = VideoRecord{
		ID:           scalarField(aux.ID),
		OwnerID:      owner,
		Title:        stringField(aux.Title),
		Description:  stringField(aux.Description),
		UploadedAt:   stringField(aux.UploadedAt),
		VideoURL:     urlField(aux.VideoURL),
		ThumbnailURL: urlField(aux.ThumbnailURL),
		Hearts:       countField(aux.Hearts),
		Comments:     countField(aux.Comments),
		Views:        countField(aux.Views),
	}
	return nil
}

// scalarString renders a JSON string or number as text. null and absent are "".
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return "", errors.New("expected string or number")
	}
	return string(raw), nil
}

func scalarField(raw json.RawMessage) string {
	s, err := scalarString(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// stringField keeps JSON strings only; a timestamp stored as a number becomes ""
// and so sorts as the zero time.
func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func urlField(raw json.RawMessage) *string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func countField(raw json.RawMessage) int {
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	return n
}

// IDFromMetadataKey is the inverse of MetadataKeyForID.
func IDFromMetadataKey(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, metadataPrefix), metadataSuffix)
}

// decodeRecord parses the metadata object stored under key. Records without an
// id take it from the key so they stay addressable for delete.
func decodeRecord(key string, data []byte) (*VideoRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("metadata is not a JSON object")
	}
	var rec VideoRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if rec.ID == "" {
		rec.ID = IDFromMetadataKey(key)
	}
	return &rec, nil
}
