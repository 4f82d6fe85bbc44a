// Package fallback composes a preferred provider with an always-available
// secondary one.
package fallback

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Func is one provider variant.
type Func[I, O any] func(ctx context.Context, in I) (O, error)

// Chain tries Primary and switches to Fallback when it returns an error or
// panics. A nil Primary goes straight to Fallback.
type Chain[I, O any] struct {
	Name     string
	Primary  Func[I, O]
	Fallback Func[I, O]
	Log      zerolog.Logger
}

func (c Chain[I, O]) Run(ctx context.Context, in I) (O, error) {
	if c.Primary != nil {
		out, err := c.tryPrimary(ctx, in)
		if err == nil {
			return out, nil
		}
		c.Log.Warn().Err(err).Str("provider", c.Name).Msg("primary provider failed, using fallback")
	}
	return c.Fallback(ctx, in)
}

func (c Chain[I, O]) tryPrimary(ctx context.Context, in I) (out O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", c.Name, r)
		}
	}()
	return c.Primary(ctx, in)
}
