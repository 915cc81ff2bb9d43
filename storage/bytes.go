package storage

import (
	"bytes"
	"context"
	"io"
)

// ByteClient wraps a streaming Storage with []byte convenience methods.
type ByteClient struct {
	Storage
}

// NewByteClient wraps s.
func NewByteClient(s Storage) *ByteClient {
	return &ByteClient{Storage: s}
}

// Put stores data at path.
func (c *ByteClient) Put(ctx context.Context, path string, data []byte) error {
	return c.Upload(ctx, path, bytes.NewReader(data))
}

// Get reads the whole object at path.
func (c *ByteClient) Get(ctx context.Context, path string) ([]byte, error) {
	rc, err := c.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	return io.ReadAll(rc)
}
