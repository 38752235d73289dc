package service

import (
	"context"

	"go.uber.org/multierr"
)

// compensator records undo steps for store writes that already succeeded so a
// later failure can restore the previous state.
type compensator struct {
	undo []func(context.Context) error
}

func (c *compensator) add(fn func(context.Context) error) {
	c.undo = append(c.undo, fn)
}

// rollback runs the undo steps newest first. It ignores cancellation of ctx so
// a cancelled caller does not leave half-applied writes behind.
func (c *compensator) rollback(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var errs error
	for i := len(c.undo) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, c.undo[i](ctx))
	}
	c.undo = nil
	return errs
}
