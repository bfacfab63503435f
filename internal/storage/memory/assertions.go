package memory

import (
	"github.com/tinoosan/tuition/internal/service/history"
	"github.com/tinoosan/tuition/internal/service/notify"
	"github.com/tinoosan/tuition/internal/service/student"
	"github.com/tinoosan/tuition/internal/service/tuition"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ student.Repo          = (*Store)(nil)
	_ student.Writer        = (*Store)(nil)
	_ tuition.Repo          = (*Store)(nil)
	_ tuition.Writer        = (*Store)(nil)
	_ tuition.StudentReader = (*Store)(nil)
	_ notify.LedgerRepo     = (*Store)(nil)
	_ notify.LedgerWriter   = (*Store)(nil)
	_ notify.Store          = (*Store)(nil)
	_ history.Repo          = (*Store)(nil)
)
