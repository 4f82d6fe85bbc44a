package narration

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// SystemVoice speaks through the platform voice: `say` on macOS and
// espeak-ng elsewhere. The voice hint picks the first installed voice whose
// name contains it.
type SystemVoice struct {
	Binary    string
	VoiceHint string
	Rate      int // words per minute

	goos    string
	resolve sync.Once
	voice   string
}

func NewSystemVoice(binary, hint string, rate int) *SystemVoice {
	if rate <= 0 {
		rate = 170
	}
	return &SystemVoice{Binary: binary, VoiceHint: hint, Rate: rate, goos: runtime.GOOS}
}

func (s *SystemVoice) binary() string {
	if s.Binary != "" {
		return s.Binary
	}
	if s.goos == "darwin" {
		return "say"
	}
	return "espeak-ng"
}

// Voices lists the installed voice names.
func (s *SystemVoice) Voices(ctx context.Context) ([]string, error) {
	args := []string{"--voices"}
	if s.goos == "darwin" {
		args = []string{"-v", "?"}
	}
	out, err := exec.CommandContext(ctx, s.binary(), args...).Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	if s.goos == "darwin" {
		return parseSayVoices(string(out)), nil
	}
	return parseEspeakVoices(string(out)), nil
}

func (s *SystemVoice) Synthesize(ctx context.Context, text, outputPath string) error {
	binary := s.binary()
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("system voice %q: %w", binary, err)
	}

	s.resolve.Do(func() {
		if s.VoiceHint == "" {
			return
		}
		// an unlistable voice set means the engine default voice; the
		// listing outlives a cancelled first caller
		if voices, err := s.Voices(context.WithoutCancel(ctx)); err == nil {
			s.voice = MatchVoice(voices, s.VoiceHint)
		}
	})

	if err := run(ctx, binary, s.args(outputPath), text); err != nil {
		return err
	}
	return verifyOutput(outputPath)
}

// args reads the text from stdin on both platforms.
func (s *SystemVoice) args(outputPath string) []string {
	rate := strconv.Itoa(s.Rate)
	var args []string
	if s.goos == "darwin" {
		args = []string{"-o", outputPath, "--file-format=WAVE", "--data-format=LEI16@22050", "-r", rate}
	} else {
		args = []string{"-w", outputPath, "-s", rate}
	}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	if s.goos == "darwin" {
		return append(args, "-f", "-")
	}
	return append(args, "--stdin")
}

// MatchVoice returns the first voice whose name contains hint,
// case-insensitively, or "" when none does.
func MatchVoice(voices []string, hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return ""
	}
	for _, v := range voices {
		if strings.Contains(strings.ToLower(v), hint) {
			return v
		}
	}
	return ""
}

// parseSayVoices reads `say -v ?` output: "Name  locale  # sample".
func parseSayVoices(out string) []string {
	var voices []string
	for _, line := range strings.Split(out, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		voices = append(voices, strings.Join(fields[:len(fields)-1], " "))
	}
	return voices
}

// parseEspeakVoices reads the VoiceName column of `espeak-ng --voices`.
func parseEspeakVoices(out string) []string {
	var voices []string
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if i == 0 && len(fields) > 0 && fields[0] == "Pty" {
			continue
		}
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, fields[3])
	}
	return voices
}
