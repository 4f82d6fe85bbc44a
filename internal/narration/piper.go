package narration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Piper runs the Piper neural TTS binary with an .onnx voice model. Text is
// piped on stdin.
type Piper struct {
	Binary string
	Model  string
}

func (p *Piper) Synthesize(ctx context.Context, text, outputPath string) error {
	if p.Binary == "" || p.Model == "" {
		return fmt.Errorf("%w: piper needs both the binary and a voice model", ErrNotConfigured)
	}
	if _, err := exec.LookPath(p.Binary); err != nil {
		return fmt.Errorf("piper binary %q: %w", p.Binary, err)
	}
	if _, err := os.Stat(p.Model); err != nil {
		return fmt.Errorf("piper voice model: %w", err)
	}

	args := []string{"--model", p.Model, "--output_file", outputPath}
	if err := run(ctx, p.Binary, args, text); err != nil {
		return err
	}
	return verifyOutput(outputPath)
}
