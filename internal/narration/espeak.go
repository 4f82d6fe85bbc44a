package narration

import (
	"context"
	"fmt"
	"os/exec"
)

// Espeak runs the classic eSpeak synthesizer.
type Espeak struct {
	Binary string
	Voice  string
}

func (e *Espeak) Synthesize(ctx context.Context, text, outputPath string) error {
	binary := e.Binary
	if binary == "" {
		binary = "espeak"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("espeak binary %q: %w", binary, err)
	}

	args := []string{"-w", outputPath}
	if e.Voice != "" {
		args = append(args, "-v", e.Voice)
	}
	// текст идёт через stdin, чтобы реплика с "-" не стала флагом
	args = append(args, "--stdin")
	if err := run(ctx, binary, args, text); err != nil {
		return err
	}
	return verifyOutput(outputPath)
}
