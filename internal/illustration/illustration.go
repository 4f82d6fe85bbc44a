// Package illustration produces one picture per scene, preferring a Stable
// Diffusion service and drawing a placeholder card when it is unavailable.
package illustration

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/fallback"
)

var ErrNotConfigured = errors.New("illustration service not configured")

// Provider returns an image of exactly width x height.
type Provider interface {
	Image(ctx context.Context, prompt string, width, height int) (image.Image, error)
}

type Request struct {
	Prompt        string
	Width, Height int
}

// Chained runs the primary provider and falls back to the placeholder.
type Chained struct {
	chain fallback.Chain[Request, image.Image]
}

func NewChained(primary Provider, placeholder *Placeholder, log zerolog.Logger) *Chained {
	c := &Chained{chain: fallback.Chain[Request, image.Image]{
		Name:     "illustration",
		Fallback: func(ctx context.Context, r Request) (image.Image, error) { return placeholder.Image(ctx, r.Prompt, r.Width, r.Height) },
		Log:      log,
	}}
	if primary != nil {
		c.chain.Primary = func(ctx context.Context, r Request) (image.Image, error) {
			return primary.Image(ctx, r.Prompt, r.Width, r.Height)
		}
	}
	return c
}

// FromConfig wires the Stable Diffusion client when a URL is configured.
func FromConfig(cfg config.IllustrationConfig, log zerolog.Logger) *Chained {
	var primary Provider
	if cfg.SDURL != "" {
		primary = NewSDClient(cfg.SDURL,
			WithGenerationParams(cfg.Steps, cfg.Sampler, cfg.CFGScale),
			WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}
	return NewChained(primary, NewPlaceholder(cfg.FontPath), log)
}

func (c *Chained) Image(ctx context.Context, prompt string, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	return c.chain.Run(ctx, Request{Prompt: prompt, Width: width, Height: height})
}
