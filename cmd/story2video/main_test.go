package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/manifest"
	"github.com/ivlev/story2video/internal/story"
	"github.com/ivlev/story2video/internal/system"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", "", "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestStoryCommandPrintsYAML(t *testing.T) {
	out, err := execute(t, "story", "--title", "Pip the Penguin", "--scenes", "3", "--minutes", "1")
	require.NoError(t, err)

	var st story.Story
	require.NoError(t, yaml.Unmarshal([]byte(out), &st))
	assert.Len(t, st.Scenes, 3)
	assert.NotEmpty(t, st.Title)
	for _, sc := range st.Scenes {
		assert.NotEmpty(t, sc.Text)
		assert.GreaterOrEqual(t, sc.Duration, story.MinSceneSeconds)
	}
}

func TestStoryCommandSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.yaml")
	out, err := execute(t, "story", "--scenes", "6", "--save", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	st, err := story.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, st.Scenes, 6)
}

func TestStoryOptionsValidation(t *testing.T) {
	_, err := execute(t, "story", "--age", "12")
	assert.ErrorContains(t, err, "--age")

	_, err = execute(t, "story", "--scenes", "0")
	assert.ErrorContains(t, err, "--scenes")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("video:\n  fps: 0\n"), 0o644))

	_, err := execute(t, "story", "--config", path)
	assert.ErrorContains(t, err, "video.fps")
}

func TestRenderOptionsApply(t *testing.T) {
	var opts renderOptions
	cmd := &cobra.Command{Use: "render"}
	opts.story.bind(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "")
	flags.BoolVar(&opts.parallel, "parallel", false, "")
	flags.BoolVar(&opts.keepWork, "keep-work", false, "")
	flags.BoolVar(&opts.noCache, "no-cache", false, "")
	flags.IntVar(&opts.workers, "workers", 0, "")
	require.NoError(t, flags.Parse([]string{"-o", "videos", "--parallel", "--no-cache"}))

	cfg := config.Default()
	cfg.Video.Workers = 3
	opts.apply(cmd, cfg)

	assert.Equal(t, "videos", cfg.Paths.OutputDir)
	assert.True(t, cfg.Video.ParallelTargets)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Paths.KeepWork)
	assert.Equal(t, 3, cfg.Video.Workers, "unset flags keep config values")
}

func TestRequirements(t *testing.T) {
	cfg := config.Default()
	var got []string
	for _, r := range requirements(cfg, "darwin") {
		got = append(got, r.Command)
	}
	assert.Equal(t, "ffmpeg,ffprobe,say", strings.Join(got, ","))

	cfg.Narration.Engine = "piper"
	cfg.Narration.PiperPath = "/opt/piper/piper"
	cfg.Narration.PiperVoice = "/opt/voices/en.onnx"
	reqs := requirements(cfg, "linux")
	require.Len(t, reqs, 4)
	assert.True(t, reqs[3].IsFile)
	assert.Equal(t, "/opt/voices/en.onnx", reqs[3].Command)
}

func TestRequirementsFontIsOptional(t *testing.T) {
	cfg := config.Default()
	cfg.Video.FFmpegPath = os.Args[0]
	cfg.Video.FFprobePath = os.Args[0]
	cfg.Narration.SystemPath = os.Args[0]
	cfg.Illustration.FontPath = filepath.Join(t.TempDir(), "missing.ttf")

	statuses := system.CheckRequirements(requirements(cfg, "linux"))
	require.Len(t, statuses, 4)
	font := statuses[3]
	assert.Equal(t, "card font", font.Name)
	assert.False(t, font.Available)
	assert.Equal(t, "optional", availability(font))
	assert.Empty(t, system.MissingRequired(statuses))
}

func TestRenderManifest(t *testing.T) {
	m := manifest.New("run", "Mina")
	m.Targets = []manifest.TargetResult{
		{Name: "reels", Width: 1080, Height: 1920, OK: true, Output: "out/mina_IG_9x16.mp4", Scenes: 8, Duration: 42, Elapsed: 3 * time.Second},
		{Name: "youtube", Width: 1920, Height: 1080, Error: "scene 2 narration: boom"},
	}
	table := renderManifest(m)
	assert.Contains(t, table, "out/mina_IG_9x16.mp4")
	assert.Contains(t, table, "1080x1920")
	assert.Contains(t, table, "scene 2 narration: boom")
	assert.Contains(t, table, "failed")
}
