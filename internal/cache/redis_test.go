package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires TEST_REDIS_ADDR to point at a disposable Redis.
func TestClient_ClaimAndBytes(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}
	ctx := context.Background()
	c, err := Open(ctx, addr, "", 0)
	require.NoError(t, err)
	defer c.Close()

	key := "test:claim:" + uuid.NewString()
	ok, err := c.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	bkey := "test:bytes:" + uuid.NewString()
	_, hit, err := c.Get(ctx, bkey)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, c.Set(ctx, bkey, []byte("%PDF-1.3"), time.Minute))
	b, hit, err := c.Get(ctx, bkey)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "%PDF-1.3", string(b))
}
