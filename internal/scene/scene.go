// Package scene reconciles a scene's requested duration with its narration
// and attaches the zoom motion.
package scene

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/story2video/internal/analyzer"
	"github.com/ivlev/story2video/internal/renderer"
	"github.com/ivlev/story2video/internal/source"
	"github.com/ivlev/story2video/internal/story"
)

// DurationProber measures media length in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Clip is a scene ready for the timeline. It is owned by one target render.
type Clip struct {
	Index             int
	ImagePath         string
	AudioPath         string
	Width, Height     int
	AudioDuration     float64
	RequestedDuration float64
	EffectiveDuration float64
	Motion            renderer.Motion
}

// Renderer builds clips. ZoomFrom/ZoomTo default to 1.0 and 1.05.
// ZoomAnchor "auto" aims the zoom at the busiest region of the picture.
type Renderer struct {
	Prober     DurationProber
	ZoomFrom   float64
	ZoomTo     float64
	ZoomAnchor string
	Detector   analyzer.Detector
}

func NewRenderer(prober DurationProber, zoomFrom, zoomTo float64, anchor string) *Renderer {
	return &Renderer{Prober: prober, ZoomFrom: zoomFrom, ZoomTo: zoomTo, ZoomAnchor: anchor}
}

func (r *Renderer) Render(ctx context.Context, index int, sc story.Scene, imagePath, audioPath string) (Clip, error) {
	w, h, err := source.Dimensions(imagePath)
	if err != nil {
		return Clip{}, fmt.Errorf("scene %d image: %w", index+1, err)
	}
	audio, err := r.Prober.Duration(ctx, audioPath)
	if err != nil {
		return Clip{}, fmt.Errorf("scene %d audio: %w", index+1, err)
	}

	effective := EffectiveDuration(sc.Duration, audio)
	if effective <= 0 {
		return Clip{}, fmt.Errorf("scene %d has no duration", index+1)
	}

	from, to := r.ZoomFrom, r.ZoomTo
	if from <= 0 {
		from = 1.0
	}
	if to <= 0 {
		to = 1.05
	}

	motion := renderer.LinearZoom(from, to, effective).Anchored(r.ZoomAnchor, index)
	if strings.EqualFold(r.ZoomAnchor, AutoAnchor) {
		motion.FocusX, motion.FocusY = r.autoFocus(imagePath)
	}

	return Clip{
		Index:             index,
		ImagePath:         imagePath,
		AudioPath:         audioPath,
		Width:             w,
		Height:            h,
		AudioDuration:     audio,
		RequestedDuration: sc.Duration,
		EffectiveDuration: effective,
		Motion:            motion,
	}, nil
}

const AutoAnchor = "auto"

func (r *Renderer) autoFocus(imagePath string) (float64, float64) {
	img, err := source.Load(imagePath)
	if err != nil {
		return 0.5, 0.5
	}
	detector := r.Detector
	if detector == nil {
		detector = analyzer.NewContrastDetector()
	}
	x, y, _ := analyzer.Focus(detector, img)
	return x, y
}

// EffectiveDuration never cuts narration short and never shortens a scene
// below its requested length.
func EffectiveDuration(requested, audio float64) float64 {
	return math.Max(requested, audio)
}
