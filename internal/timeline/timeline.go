// Package timeline places clips back to back on a frame grid and encodes
// them into one video.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/effects"
	"github.com/ivlev/story2video/internal/scene"
	"github.com/ivlev/story2video/internal/source"
	"github.com/ivlev/story2video/internal/video"
)

// Entry is one clip's span on the output timeline.
type Entry struct {
	Index      int
	StartFrame int
	Frames     int
	Start      float64
	Duration   float64
	Effective  float64
}

type Timeline struct {
	FPS         int
	TotalFrames int
	Entries     []Entry
}

// Total is the output duration in seconds.
func (t Timeline) Total() float64 {
	if t.FPS <= 0 {
		return 0
	}
	return float64(t.TotalFrames) / float64(t.FPS)
}

// frameEpsilon absorbs float noise so that an exact frame boundary is not
// rounded up to the next frame.
const frameEpsilon = 1e-6

// Plan assigns frame spans by rounding the cumulative end time of every
// clip up to the frame grid. Boundaries never move backwards, the total
// equals ceil(sum(effective)*fps) and no clip gets fewer than one frame.
// A clip may get up to one frame less than effective*fps, so narration that
// fills its scene exactly can lose less than one frame at the end.
func Plan(clips []scene.Clip, fps int) Timeline {
	tl := Timeline{FPS: fps, Entries: make([]Entry, 0, len(clips))}
	if fps <= 0 {
		return tl
	}
	var cumulative float64
	prevEnd := 0
	for _, c := range clips {
		cumulative += c.EffectiveDuration
		end := int(math.Ceil(cumulative*float64(fps) - frameEpsilon))
		if end <= prevEnd {
			end = prevEnd + 1
		}
		tl.Entries = append(tl.Entries, Entry{
			Index:      c.Index,
			StartFrame: prevEnd,
			Frames:     end - prevEnd,
			Start:      float64(prevEnd) / float64(fps),
			Duration:   float64(end-prevEnd) / float64(fps),
			Effective:  c.EffectiveDuration,
		})
		prevEnd = end
	}
	tl.TotalFrames = prevEnd
	return tl
}

// Assembler encodes every clip as a segment and concatenates them in
// scene order.
type Assembler struct {
	Encoder video.VideoEncoder
	Effect  effects.Effect
	FPS     int
	Workers int
	Log     zerolog.Logger
}

func (a *Assembler) Assemble(ctx context.Context, clips []scene.Clip, width, height int, outPath, workDir string) (Timeline, error) {
	if len(clips) == 0 {
		return Timeline{}, errors.New("assemble: no clips")
	}
	if width <= 0 || height <= 0 {
		return Timeline{}, fmt.Errorf("assemble: invalid resolution %dx%d", width, height)
	}
	effect := a.Effect
	if effect == nil {
		effect = effects.KenBurnsEffect{}
	}
	workers := a.Workers
	if workers < 1 {
		workers = 1
	}

	tl := Plan(clips, a.FPS)
	segments := make([]string, len(clips))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, clip := range clips {
		entry := tl.Entries[i]
		g.Go(func() error {
			img, err := source.Load(clip.ImagePath)
			if err != nil {
				return fmt.Errorf("scene %d: %w", clip.Index+1, err)
			}
			params := config.SegmentParams{
				Width:      width,
				Height:     height,
				FPS:        a.FPS,
				Frames:     entry.Frames,
				Duration:   clip.Motion.Duration,
				ZoomFrom:   clip.Motion.From,
				ZoomTo:     clip.Motion.To,
				FocusX:     clip.Motion.FocusX,
				FocusY:     clip.Motion.FocusY,
				SceneIndex: clip.Index,
			}
			out := filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", i+1))
			err = a.Encoder.EncodeSegment(gctx, video.Segment{
				Image:     img,
				AudioPath: clip.AudioPath,
				Output:    out,
				Filter:    effect.GenerateFilter(params),
				Params:    params,
			})
			if err != nil {
				return fmt.Errorf("scene %d: %w", clip.Index+1, err)
			}
			segments[i] = out
			a.Log.Debug().Int("scene", clip.Index+1).Int("frames", entry.Frames).Msg("segment encoded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Timeline{}, err
	}

	if err := a.Encoder.Concatenate(ctx, segments, outPath); err != nil {
		return Timeline{}, fmt.Errorf("concatenate: %w", err)
	}
	a.Log.Info().
		Str("output", outPath).
		Int("scenes", len(clips)).
		Float64("seconds", tl.Total()).
		Dur("elapsed", time.Since(start)).
		Msg("video assembled")
	return tl, nil
}
