package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Story        StoryConfig        `yaml:"story" toml:"story"`
	Illustration IllustrationConfig `yaml:"illustration" toml:"illustration"`
	Narration    NarrationConfig    `yaml:"narration" toml:"narration"`
	Video        VideoConfig        `yaml:"video" toml:"video"`
	Paths        PathsConfig        `yaml:"paths" toml:"paths"`
	Cache        CacheConfig        `yaml:"cache" toml:"cache"`
	Log          LogConfig          `yaml:"log" toml:"log"`
}

type StoryConfig struct {
	// Engine is "rule" or "ollama". Ollama falls back to rule on any failure.
	Engine         string `yaml:"engine" toml:"engine"`
	OllamaURL      string `yaml:"ollama_url" toml:"ollama_url"`
	OllamaModel    string `yaml:"ollama_model" toml:"ollama_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

type IllustrationConfig struct {
	// SDURL empty means placeholders only.
	SDURL          string  `yaml:"sd_url" toml:"sd_url"`
	Steps          int     `yaml:"steps" toml:"steps"`
	Sampler        string  `yaml:"sampler" toml:"sampler"`
	CFGScale       float64 `yaml:"cfg_scale" toml:"cfg_scale"`
	TimeoutSeconds int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
	FontPath       string  `yaml:"font_path" toml:"font_path"`
}

type NarrationConfig struct {
	Engine     string `yaml:"engine" toml:"engine"` // system, piper, espeak
	Voice      string `yaml:"voice" toml:"voice"`
	Rate       int    `yaml:"rate" toml:"rate"`
	SystemPath string `yaml:"system_path" toml:"system_path"`
	PiperPath  string `yaml:"piper_path" toml:"piper_path"`
	PiperVoice string `yaml:"piper_voice" toml:"piper_voice"`
	EspeakPath string `yaml:"espeak_path" toml:"espeak_path"`
}

type VideoConfig struct {
	FPS             int     `yaml:"fps" toml:"fps"`
	ZoomStart       float64 `yaml:"zoom_start" toml:"zoom_start"`
	ZoomEnd         float64 `yaml:"zoom_end" toml:"zoom_end"`
	ZoomAnchor      string  `yaml:"zoom_anchor" toml:"zoom_anchor"` // center, corners, random or auto
	Motion          string  `yaml:"motion" toml:"motion"` // kenburns or static
	Encoder         string  `yaml:"encoder" toml:"encoder"` // auto or an ffmpeg encoder name
	Quality         int     `yaml:"quality" toml:"quality"` // 0 picks the encoder default
	AudioBitrate    string  `yaml:"audio_bitrate" toml:"audio_bitrate"`
	Workers         int     `yaml:"workers" toml:"workers"` // 0 sizes from the host
	ParallelTargets bool    `yaml:"parallel_targets" toml:"parallel_targets"`
	FFmpegPath      string  `yaml:"ffmpeg_path" toml:"ffmpeg_path"`
	FFprobePath     string  `yaml:"ffprobe_path" toml:"ffprobe_path"`
}

type PathsConfig struct {
	OutputDir string `yaml:"output_dir" toml:"output_dir"`
	WorkDir   string `yaml:"work_dir" toml:"work_dir"`
	KeepWork  bool   `yaml:"keep_work" toml:"keep_work"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

// SegmentParams describes one encoded clip.
type SegmentParams struct {
	Width, Height int
	FPS           int
	Frames        int
	Duration      float64
	ZoomFrom      float64
	ZoomTo        float64
	FocusX        float64
	FocusY        float64
	SceneIndex    int
}

func Default() *Config {
	return &Config{
		Story: StoryConfig{
			Engine:         "rule",
			OllamaURL:      "http://127.0.0.1:11434",
			OllamaModel:    "llama3.1:8b",
			TimeoutSeconds: 180,
		},
		Illustration: IllustrationConfig{
			Steps:          25,
			Sampler:        "Euler a",
			CFGScale:       6.5,
			TimeoutSeconds: 180,
		},
		Narration: NarrationConfig{
			Engine: "system",
			Rate:   170,
		},
		Video: VideoConfig{
			FPS:          30,
			ZoomStart:    1.0,
			ZoomEnd:      1.05,
			ZoomAnchor:   "center",
			Motion:       "kenburns",
			Encoder:      "auto",
			AudioBitrate: "192k",
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
		},
		Paths: PathsConfig{
			OutputDir: "output",
			WorkDir:   filepath.Join(os.TempDir(), "story2video"),
		},
		Cache: CacheConfig{Enabled: true},
		Log:   LogConfig{Level: "info", Format: "auto"},
	}
}

// Load reads a YAML or TOML file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q", path, filepath.Ext(path))
	}
	return cfg, nil
}

// ApplyEnv overlays the process-level service settings.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("SD_API", &cfg.Illustration.SDURL)
	set("OLLAMA_API", &cfg.Story.OllamaURL)
	set("OLLAMA_MODEL", &cfg.Story.OllamaModel)
	set("PIPER_PATH", &cfg.Narration.PiperPath)
	set("PIPER_VOICE", &cfg.Narration.PiperVoice)
	set("ESPEAK_PATH", &cfg.Narration.EspeakPath)
	set("FFMPEG_PATH", &cfg.Video.FFmpegPath)
	set("FFPROBE_PATH", &cfg.Video.FFprobePath)
	set("STORY2VIDEO_OUTPUT_DIR", &cfg.Paths.OutputDir)
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Story.Engine {
	case "rule", "ollama":
	default:
		errs = append(errs, fmt.Errorf("story.engine: unknown value %q", c.Story.Engine))
	}
	switch c.Narration.Engine {
	case "system", "piper", "espeak":
	default:
		errs = append(errs, fmt.Errorf("narration.engine: unknown value %q", c.Narration.Engine))
	}
	if c.Narration.Rate <= 0 {
		errs = append(errs, errors.New("narration.rate must be positive"))
	}
	if c.Video.FPS <= 0 {
		errs = append(errs, errors.New("video.fps must be positive"))
	}
	switch c.Video.Motion {
	case "kenburns", "static":
	default:
		errs = append(errs, fmt.Errorf("video.motion: unknown value %q", c.Video.Motion))
	}
	if c.Video.ZoomStart <= 0 || c.Video.ZoomEnd <= 0 {
		errs = append(errs, errors.New("video zoom factors must be positive"))
	}
	if c.Video.Workers < 0 {
		errs = append(errs, errors.New("video.workers must not be negative"))
	}
	if c.Story.TimeoutSeconds <= 0 || c.Illustration.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("service timeouts must be positive"))
	}
	if c.Illustration.Steps <= 0 {
		errs = append(errs, errors.New("illustration.steps must be positive"))
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		errs = append(errs, errors.New("paths.output_dir is required"))
	}
	return errors.Join(errs...)
}
