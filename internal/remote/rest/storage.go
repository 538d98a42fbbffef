package rest

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// Put uploads r to path inside the bucket. Existing objects are not
// overwritten.
func (c *Client) Put(ctx context.Context, path string, r io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.do(ctx, "upload object", request{
		method: http.MethodPost,
		path:   storagePrefix + c.bucket + "/" + strings.TrimLeft(path, "/"),
		body:   r,
		ctype:  contentType,
		headers: map[string]string{
			"Cache-Control": "max-age=3600",
			"x-upsert":      "false",
		},
	}, nil)
}

// PublicURL returns the public address of path in the bucket.
func (c *Client) PublicURL(path string) string {
	u := *c.base
	u.Path = c.base.Path + storagePrefix + "public/" + c.bucket + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

// Delete removes the objects at paths from the bucket.
func (c *Client) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return c.doJSON(ctx, "delete objects", http.MethodDelete, storagePrefix+c.bucket, nil,
		map[string][]string{"prefixes": paths}, nil, nil)
}
