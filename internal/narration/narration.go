// Package narration turns scene text into a waveform file using offline
// speech engines.
package narration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ivlev/story2video/internal/config"
)

var (
	ErrUnknownEngine = errors.New("unknown narration engine")
	ErrEmptyOutput   = errors.New("narration produced no audio")
	ErrNotConfigured = errors.New("narration engine not configured")
)

// Synthesizer writes spoken text to outputPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputPath string) error
}

// New builds the synthesizer selected by name.
func New(name string, cfg config.NarrationConfig) (Synthesizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "system":
		return NewSystemVoice(cfg.SystemPath, cfg.Voice, cfg.Rate), nil
	case "piper":
		return &Piper{Binary: cfg.PiperPath, Model: cfg.PiperVoice}, nil
	case "espeak":
		return &Espeak{Binary: cfg.EspeakPath, Voice: cfg.Voice}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// Describe returns a cache-key friendly identity of the configured voice.
func Describe(name string, cfg config.NarrationConfig) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "piper":
		return "piper|" + cfg.PiperVoice
	case "espeak":
		return "espeak|" + cfg.Voice
	default:
		return fmt.Sprintf("system|%s|%d", cfg.Voice, cfg.Rate)
	}
}

// run executes binary with args, feeding stdin when non-empty. The process
// stderr is folded into the returned error.
func run(ctx context.Context, binary string, args []string, stdin string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", binary, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEmptyOutput, path)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyOutput, path)
	}
	return nil
}
