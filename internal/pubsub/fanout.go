package pubsub

import (
	"context"
	"errors"

	"github.com/agbru/lookforge/internal/progress"
)

// Fanout publishes every snapshot to several publishers in order. A failing
// publisher does not prevent delivery to the others; all errors are joined.
type Fanout []progress.Publisher

// Publish implements progress.Publisher.
func (f Fanout) Publish(ctx context.Context, sessionID string, snap progress.Snapshot) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, sessionID, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
