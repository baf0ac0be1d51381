package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoObjectStore is returned for s3:// locations when the client has no
// ObjectGetter.
var ErrNoObjectStore = errors.New("fetch: s3 sources are not configured")

// SourceError describes a source that could not be read.
type SourceError struct {
	Location string
	Status   int
	Err      error
}

func (e *SourceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Location, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// SourceReader reads plugin and module sources. Concurrent reads of the same
// location share one fetch.
type SourceReader struct {
	client *Client
	group  singleflight.Group
}

// NewSourceReader creates a reader that uses client for remote locations.
func NewSourceReader(client *Client) *SourceReader {
	return &SourceReader{client: client}
}

// Fetch returns the text at location: a local path, an http(s) URL (2xx
// required) or s3://bucket/key.
func (r *SourceReader) Fetch(ctx context.Context, location string) (string, error) {
	v, err, shared := r.group.Do(location, func() (any, error) {
		return r.fetch(ctx, location)
	})
	if shared {
		r.client.logger.Debug("source fetch shared", zap.String("location", location))
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *SourceReader) fetch(ctx context.Context, location string) (string, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		resp, err := r.client.do(ctx, Request{URL: location, Method: http.MethodGet})
		if err != nil {
			return "", &SourceError{Location: location, Err: err}
		}
		if !resp.OK {
			return "", &SourceError{Location: location, Status: resp.Status, Err: errors.New(resp.StatusText)}
		}
		return resp.Content, nil

	case strings.HasPrefix(location, "s3://"):
		if r.client.s3 == nil {
			return "", &SourceError{Location: location, Err: ErrNoObjectStore}
		}
		bucket, key, err := ParseS3URL(location)
		if err != nil {
			return "", &SourceError{Location: location, Err: err}
		}
		data, err := r.client.s3.GetObject(ctx, bucket, key)
		if err != nil {
			return "", &SourceError{Location: location, Err: err}
		}
		return string(data), nil

	default:
		path := location
		if strings.HasPrefix(path, "file://") {
			u, err := url.Parse(path)
			if err != nil {
				return "", &SourceError{Location: location, Err: err}
			}
			path = u.Path
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &SourceError{Location: location, Err: err}
		}
		return string(data), nil
	}
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 url: %s", location)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 url has no key: %s", location)
	}
	return u.Host, key, nil
}
