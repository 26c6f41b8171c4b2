package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoKey is returned when a payload carries no object key.
var ErrNoKey = errors.New("trigger: payload has no object key")

// Handler processes one key.
type Handler func(ctx context.Context, key string) error

// s3Event is the subset of an S3 event notification that names the object.
type s3Event struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// keyRequest is the plain JSON payload form.
type keyRequest struct {
	Key string `json:"key"`
}

// KeyFromPayload extracts the object key from a trigger payload.
func KeyFromPayload(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", ErrNoKey
	}
	if data[0] != '{' {
		return string(data), nil
	}

	var ev s3Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", fmt.Errorf("trigger: decode payload: %w", err)
	}
	if len(ev.Records) > 0 {
		return objectKey(ev.Records[0].S3.Object.Key)
	}

	var req keyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", fmt.Errorf("trigger: decode payload: %w", err)
	}
	if strings.TrimSpace(req.Key) == "" {
		return "", ErrNoKey
	}
	return req.Key, nil
}

// objectKey decodes an S3 notification key: '+' is a space and the rest is
// URL-encoded.
func objectKey(raw string) (string, error) {
	if raw == "" {
		return "", ErrNoKey
	}
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("trigger: unescape key %q: %w", raw, err)
	}
	return key, nil
}
