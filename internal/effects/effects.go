package effects

import (
	"fmt"
	"strings"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/renderer"
)

// Effect turns segment parameters into the video filter chain applied to
// the single still frame of a scene.
type Effect interface {
	GenerateFilter(params config.SegmentParams) string
}

// ByName resolves the configured motion style.
func ByName(name string) (Effect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "kenburns":
		return KenBurnsEffect{}, nil
	case "static":
		return StaticEffect{}, nil
	default:
		return nil, fmt.Errorf("unknown motion effect %q", name)
	}
}

// KenBurnsEffect zooms slowly into the frame. The image is upscaled 2x
// before zoompan so that the sub-pixel steps do not jitter.
type KenBurnsEffect struct{}

func (KenBurnsEffect) GenerateFilter(p config.SegmentParams) string {
	motion := renderer.Motion{
		From:     p.ZoomFrom,
		To:       p.ZoomTo,
		Duration: p.Duration,
		FocusX:   p.FocusX,
		FocusY:   p.FocusY,
	}

	aspectFilter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		p.Width*2, p.Height*2, p.Width*2, p.Height*2,
	)
	zoomFilter := renderer.GenerateZoomPanFilter(motion.Keyframes(), p.FPS, p.Frames, p.Width, p.Height)

	return fmt.Sprintf("%s,%s,scale=%d:%d,setsar=1", aspectFilter, zoomFilter, p.Width, p.Height)
}

// StaticEffect holds the frame for the whole segment.
type StaticEffect struct{}

func (StaticEffect) GenerateFilter(p config.SegmentParams) string {
	frames := p.Frames
	if frames < 1 {
		frames = 1
	}
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,loop=loop=%d:size=1:start=0,fps=%d,setsar=1",
		p.Width, p.Height, p.Width, p.Height, frames-1, p.FPS,
	)
}
