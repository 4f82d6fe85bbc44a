package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.Video.FPS)
	assert.InDelta(t, 1.05, cfg.Video.ZoomEnd, 1e-9)
	assert.Equal(t, "llama3.1:8b", cfg.Story.OllamaModel)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story2video.yaml")
	content := `
narration:
  engine: piper
  piper_path: /opt/piper/piper
video:
  fps: 24
  parallel_targets: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "piper", cfg.Narration.Engine)
	assert.Equal(t, "/opt/piper/piper", cfg.Narration.PiperPath)
	assert.Equal(t, 24, cfg.Video.FPS)
	assert.True(t, cfg.Video.ParallelTargets)
	// untouched sections keep their defaults
	assert.Equal(t, 170, cfg.Narration.Rate)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story2video.toml")
	content := `
[story]
engine = "ollama"
ollama_model = "mistral"

[cache]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Story.Engine)
	assert.Equal(t, "mistral", cfg.Story.OllamaModel)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("video:\n  frames_per_second: 30\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SD_API":       "http://127.0.0.1:7860",
		"OLLAMA_MODEL": "qwen2",
		"FFMPEG_PATH":  "/usr/local/bin/ffmpeg",
		"PIPER_VOICE":  "   ",
	}
	cfg := Default()
	ApplyEnv(cfg, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})

	assert.Equal(t, "http://127.0.0.1:7860", cfg.Illustration.SDURL)
	assert.Equal(t, "qwen2", cfg.Story.OllamaModel)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.Video.FFmpegPath)
	assert.Empty(t, cfg.Narration.PiperVoice)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fps", func(c *Config) { c.Video.FPS = 0 }},
		{"tts engine", func(c *Config) { c.Narration.Engine = "festival" }},
		{"story engine", func(c *Config) { c.Story.Engine = "gpt" }},
		{"rate", func(c *Config) { c.Narration.Rate = -1 }},
		{"workers", func(c *Config) { c.Video.Workers = -2 }},
		{"output dir", func(c *Config) { c.Paths.OutputDir = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
