package v1

import (
	"github.com/tinoosan/tuition/internal/cache"
	"github.com/tinoosan/tuition/internal/service/notify"
	"github.com/tinoosan/tuition/internal/storage/memory"
	"github.com/tinoosan/tuition/internal/storage/postgres"
)

// Compile-time interface assertions for the optional collaborators.
var (
	_ ReadyChecker  = (*memory.Store)(nil)
	_ ReadyChecker  = (*postgres.Store)(nil)
	_ ReadyChecker  = (*cache.Client)(nil)
	_ DocumentCache = (*cache.Client)(nil)
	_ Sweeper       = (*notify.Sweeper)(nil)
)
