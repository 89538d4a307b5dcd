package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Bucket is one object storage bucket
type Bucket struct {
	c    *Client
	name string
}

// Storage returns a handle on the named bucket
func (c *Client) Storage(bucket string) *Bucket {
	return &Bucket{c: c, name: bucket}
}

type uploadResponse struct {
	Key string `json:"Key"`
}

// Upload stores the content of r at path and returns the object path within
// the bucket as reported by the backend. With upsert an existing object is
// replaced.
func (b *Bucket) Upload(ctx context.Context, path string, r io.Reader, contentType string, upsert bool) (string, error) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", errors.New("object path is required")
	}

	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	header.Set("x-upsert", strconv.FormatBool(upsert))

	var resp uploadResponse
	err := b.c.do(ctx, request{
		method: http.MethodPost,
		path:   storagePath + "/object/" + b.name + "/" + path,
		body:   r,
		header: header,
	}, &resp)
	if err != nil {
		return "", err
	}

	// the reported key carries the bucket name
	if key := strings.TrimPrefix(resp.Key, b.name+"/"); key != "" {
		return key, nil
	}
	return path, nil
}
