//go:build !llamacpp

package llm

import (
	"context"
	"fmt"
)

// LocalClient is a stub implementation used when the llamacpp build tag
// is not set. It returns Available()=false so callers fall back to
// other providers.
type LocalClient struct {
	modelPath string
}

// NewLocalClient creates a new LocalClient. In the stub build (without
// the llamacpp tag), this client is always unavailable.
func NewLocalClient(cfg ClientConfig) *LocalClient {
	return &LocalClient{modelPath: cfg.LocalModelPath}
}

// Embed returns an error because the local client is not available in
// stub builds.
func (c *LocalClient) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, fmt.Errorf("local embedding provider not available: build with -tags llamacpp")
}

// Available returns false because the local LLM is not compiled in
// without the llamacpp build tag.
func (c *LocalClient) Available() bool {
	return false
}

// Close is a no-op for the stub client.
func (c *LocalClient) Close() error {
	return nil
}
