package timeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/story2video/internal/renderer"
	"github.com/ivlev/story2video/internal/scene"
	"github.com/ivlev/story2video/internal/source"
	"github.com/ivlev/story2video/internal/video"
)

func clipsWith(durations ...float64) []scene.Clip {
	clips := make([]scene.Clip, len(durations))
	for i, d := range durations {
		clips[i] = scene.Clip{Index: i, EffectiveDuration: d, Motion: renderer.LinearZoom(1, 1.05, d)}
	}
	return clips
}

func TestPlanTotalWithinOneFrame(t *testing.T) {
	cases := [][]float64{
		{3.5, 3.5, 3.5},
		{4.2333, 7.01, 10, 3.5},
		{0.01, 0.01, 0.01},
		{12.345678},
		{3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5, 3.5},
	}
	for _, fps := range []int{24, 25, 30} {
		for _, durations := range cases {
			t.Run(fmt.Sprintf("fps=%d/%v", fps, durations), func(t *testing.T) {
				tl := Plan(clipsWith(durations...), fps)
				var sum float64
				for _, d := range durations {
					sum += d
				}
				frame := 1 / float64(fps)
				if sum >= float64(len(durations))*frame {
					assert.Equal(t, int(math.Ceil(sum*float64(fps)-frameEpsilon)), tl.TotalFrames)
					assert.Less(t, math.Abs(tl.Total()-sum), frame+1e-9)
				}

				next := 0
				for i, e := range tl.Entries {
					assert.Equal(t, i, e.Index)
					assert.Equal(t, next, e.StartFrame, "entries must be contiguous")
					assert.GreaterOrEqual(t, e.Frames, 1)
					next = e.StartFrame + e.Frames
				}
				assert.Equal(t, tl.TotalFrames, next)
			})
		}
	}
}

func TestPlanExactBoundaries(t *testing.T) {
	tl := Plan(clipsWith(3.5, 4.0, 2.5), 30)
	require.Len(t, tl.Entries, 3)
	assert.Equal(t, 105, tl.Entries[0].Frames)
	assert.Equal(t, 120, tl.Entries[1].Frames)
	assert.Equal(t, 75, tl.Entries[2].Frames)
	assert.InDelta(t, 10.0, tl.Total(), 1e-9)
	assert.InDelta(t, 3.5, tl.Entries[1].Start, 1e-9)
}

func TestPlanShortfallUnderOneFrame(t *testing.T) {
	// вторая сцена целиком занята озвучкой 3.49 с
	clips := clipsWith(3.54, 3.49)
	clips[1].AudioDuration = 3.49
	tl := Plan(clips, 30)
	assert.Equal(t, 107, tl.Entries[0].Frames)
	assert.Equal(t, 104, tl.Entries[1].Frames)
	assert.Less(t, clips[1].AudioDuration-tl.Entries[1].Duration, 1.0/30)

	for _, fps := range []int{24, 25, 30} {
		durations := []float64{3.54, 3.49, 4.017, 2.999, 5.5001, 3.3333}
		for i, e := range Plan(clipsWith(durations...), fps).Entries {
			assert.Greater(t, float64(e.Frames), durations[i]*float64(fps)-1, "fps=%d scene %d", fps, i)
		}
	}
}

// markerEncoder writes the scene index into each segment and concatenates
// segment contents, so the output reveals the order scenes were joined in.
type markerEncoder struct {
	mu       sync.Mutex
	failOn   int
	encoded  []int
	segments []string
}

func (m *markerEncoder) EncodeSegment(ctx context.Context, seg video.Segment) error {
	// later scenes finish first
	time.Sleep(time.Duration(5-seg.Params.SceneIndex%5) * 3 * time.Millisecond)
	if seg.Params.SceneIndex == m.failOn {
		return errors.New("encoder crashed")
	}
	m.mu.Lock()
	m.encoded = append(m.encoded, seg.Params.SceneIndex)
	m.mu.Unlock()
	return os.WriteFile(seg.Output, []byte(fmt.Sprintf("scene-%d|%d|", seg.Params.SceneIndex, seg.Params.Frames)), 0o644)
}

func (m *markerEncoder) Concatenate(ctx context.Context, segmentPaths []string, finalPath string) error {
	m.segments = segmentPaths
	var b strings.Builder
	for _, p := range segmentPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		b.Write(data)
	}
	return os.WriteFile(finalPath, []byte(b.String()), 0o644)
}

func sceneClips(t *testing.T, n int) []scene.Clip {
	t.Helper()
	dir := t.TempDir()
	clips := make([]scene.Clip, n)
	for i := range clips {
		path := filepath.Join(dir, fmt.Sprintf("scene_%02d.png", i+1))
		require.NoError(t, source.SavePNG(path, image.NewRGBA(image.Rect(0, 0, 16, 9))))
		d := 3.5 + float64(i)*0.1
		clips[i] = scene.Clip{Index: i, ImagePath: path, EffectiveDuration: d, Motion: renderer.LinearZoom(1, 1.05, d)}
	}
	return clips
}

func TestAssemblePreservesSceneOrder(t *testing.T) {
	enc := &markerEncoder{failOn: -1}
	a := &Assembler{Encoder: enc, FPS: 30, Workers: 5, Log: zerolog.Nop()}
	out := filepath.Join(t.TempDir(), "final.mp4")

	tl, err := a.Assemble(context.Background(), sceneClips(t, 5), 16, 9, out, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var want strings.Builder
	for _, e := range tl.Entries {
		fmt.Fprintf(&want, "scene-%d|%d|", e.Index, e.Frames)
	}
	assert.Equal(t, want.String(), string(data))
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, enc.encoded)
	for i, p := range enc.segments {
		assert.Equal(t, fmt.Sprintf("segment_%03d.mp4", i+1), filepath.Base(p))
	}
}

func TestAssembleReportsFailingScene(t *testing.T) {
	enc := &markerEncoder{failOn: 2}
	a := &Assembler{Encoder: enc, FPS: 30, Workers: 2, Log: zerolog.Nop()}

	_, err := a.Assemble(context.Background(), sceneClips(t, 4), 16, 9, filepath.Join(t.TempDir(), "x.mp4"), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene 3")
}

func TestAssembleRejectsEmptyInput(t *testing.T) {
	a := &Assembler{Encoder: &markerEncoder{}, FPS: 30}
	_, err := a.Assemble(context.Background(), nil, 16, 9, "x.mp4", t.TempDir())
	assert.Error(t, err)
	_, err = a.Assemble(context.Background(), sceneClips(t, 1), 0, 9, "x.mp4", t.TempDir())
	assert.Error(t, err)
}
