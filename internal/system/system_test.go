package system

import (
	"context"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickEncoder(t *testing.T) {
	assert.Equal(t, "h264_nvenc", pickEncoder(" V....D h264_nvenc  NVIDIA NVENC H.264 encoder\n V....D libx264"))
	assert.Equal(t, "h264_videotoolbox", pickEncoder("h264_nvenc h264_videotoolbox"))
	assert.Equal(t, "libx264", pickEncoder(" V....D libx264"))
	assert.Equal(t, 23, DefaultQuality("libx264"))
	assert.Equal(t, 75, DefaultQuality("h264_videotoolbox"))
}

func TestBestH264EncoderMissingBinary(t *testing.T) {
	assert.Equal(t, "libx264", BestH264Encoder(context.Background(), filepath.Join(t.TempDir(), "no-ffmpeg")))
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration([]byte(`{"format":{"duration":"4.250000"},"streams":[]}`))
	require.NoError(t, err)
	assert.InDelta(t, 4.25, d, 1e-9)

	d, err = parseDuration([]byte(`{"format":{"duration":"N/A"},"streams":[{"codec_type":"audio","duration":"2.5"},{"codec_type":"video","duration":"9"}]}`))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, d, 1e-9)

	_, err = parseDuration([]byte(`{"format":{},"streams":[]}`))
	assert.Error(t, err)

	_, err = parseDuration([]byte(`not json`))
	assert.Error(t, err)
}

func TestFFprobeDurationWithFakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho '{\"format\":{\"duration\":\"3.2\"}}'\n"), 0o755))

	d, err := FFprobe{Binary: script}.Duration(context.Background(), "narration.wav")
	require.NoError(t, err)
	assert.InDelta(t, 3.2, d, 1e-9)
}

func TestFFprobeDurationFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'no such file' >&2\nexit 1\n"), 0o755))

	_, err := FFprobe{Binary: script}.Duration(context.Background(), "missing.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")

	_, err = FFprobe{Binary: script}.Duration(context.Background(), " ")
	assert.Error(t, err)
}

func TestFFprobeRealFile(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	cmd := exec.Command("ffmpeg", "-y", "-v", "error", "-f", "lavfi", "-i", "sine=frequency=440:duration=1.5", path)
	require.NoError(t, cmd.Run())

	d, err := FFprobe{}.Duration(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, d, 0.05)
}

func TestDefaultWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkers(), 1)
}

func TestFramePoolReusesBySize(t *testing.T) {
	pool := NewFramePool(2)
	img := pool.Get(64, 32)
	require.Equal(t, image.Rect(0, 0, 64, 32), img.Rect)
	img.Pix[0] = 42
	pool.Put(img)
	assert.Equal(t, 1, pool.Idle(64, 32))

	again := pool.Get(64, 32)
	assert.Same(t, img, again)
	assert.Equal(t, uint8(42), again.Pix[0], "reused frames are not cleared")
	assert.Zero(t, pool.Idle(64, 32))

	other := pool.Get(32, 64)
	assert.NotSame(t, img, other)
	assert.Equal(t, image.Rect(0, 0, 32, 64), other.Rect)
}

func TestFramePoolRejects(t *testing.T) {
	pool := NewFramePool(2)
	pool.Put(nil)
	base := image.NewRGBA(image.Rect(0, 0, 8, 8))
	pool.Put(base.SubImage(image.Rect(0, 0, 4, 4)).(*image.RGBA))
	pool.Put(image.NewRGBA(image.Rect(2, 2, 6, 6)))
	assert.Zero(t, pool.Idle(4, 4))

	for i := 0; i < 3; i++ {
		pool.Put(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	}
	assert.Equal(t, 2, pool.Idle(8, 8), "idle frames per size are capped")
}

func TestCheckRequirements(t *testing.T) {
	model := filepath.Join(t.TempDir(), "voice.onnx")
	require.NoError(t, os.WriteFile(model, []byte("x"), 0o644))

	statuses := CheckRequirements([]Requirement{
		{Name: "missing", Command: "definitely-not-a-real-binary-xyz"},
		{Name: "unset", Command: "", Optional: true},
		{Name: "model", Command: model, IsFile: true},
	})
	require.Len(t, statuses, 3)
	assert.False(t, statuses[0].Available)
	assert.Equal(t, "not configured", statuses[1].Detail)
	assert.True(t, statuses[2].Available)
	assert.Equal(t, []string{"missing"}, MissingRequired(statuses))
}
