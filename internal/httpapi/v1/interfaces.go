package v1

import (
	"context"
	"time"
)

// ReadyChecker is implemented by stores and caches that can report readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// DocumentCache stores rendered documents such as receipt PDFs.
type DocumentCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, b []byte, ttl time.Duration) error
}
