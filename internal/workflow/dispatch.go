package workflow

import (
	"context"

	"github.com/heimdex/heimdex-editor/internal/catalog"
)

type waker interface {
	Wake()
}

// LocalDispatcher leaves the pending job for the in-process runner and nudges
// it so the job starts without waiting for the next poll.
type LocalDispatcher struct {
	runner waker
}

func NewLocalDispatcher(runner waker) *LocalDispatcher {
	return &LocalDispatcher{runner: runner}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, job *catalog.Job) error {
	if d.runner != nil {
		d.runner.Wake()
	}
	return nil
}
