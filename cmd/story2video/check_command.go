package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/system"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report which external tools and services are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := system.CheckRequirements(requirements(ctx.cfg, runtime.GOOS))
			rows := make([][]string, 0, len(statuses)+2)
			for _, s := range statuses {
				rows = append(rows, []string{s.Name, availability(s), s.Detail, s.Description})
			}
			rows = append(rows,
				serviceRow("Stable Diffusion", ctx.cfg.Illustration.SDURL, "illustrations (placeholder cards otherwise)"),
				serviceRow("Ollama", storyService(ctx.cfg.Story), "story writing (rule-based otherwise)"),
			)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Component", "Status", "Detail", "Used for"}, rows, nil))

			if missing := system.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

// requirements lists the binaries the configured pipeline will execute.
func requirements(cfg *config.Config, goos string) []system.Requirement {
	reqs := []system.Requirement{
		{Name: "ffmpeg", Command: cfg.Video.FFmpegPath, Description: "segment encoding and concatenation"},
		{Name: "ffprobe", Command: cfg.Video.FFprobePath, Description: "narration length"},
	}
	switch cfg.Narration.Engine {
	case "piper":
		reqs = append(reqs,
			system.Requirement{Name: "piper", Command: cfg.Narration.PiperPath, Description: "narration"},
			system.Requirement{Name: "piper voice", Command: cfg.Narration.PiperVoice, Description: "piper voice model", IsFile: true},
		)
	case "espeak":
		reqs = append(reqs, system.Requirement{Name: "espeak", Command: firstNonEmpty(cfg.Narration.EspeakPath, "espeak"), Description: "narration"})
	default:
		binary := "espeak-ng"
		if goos == "darwin" {
			binary = "say"
		}
		reqs = append(reqs, system.Requirement{Name: "system voice", Command: firstNonEmpty(cfg.Narration.SystemPath, binary), Description: "narration"})
	}
	if cfg.Illustration.FontPath != "" {
		reqs = append(reqs, system.Requirement{
			Name: "card font", Command: cfg.Illustration.FontPath, IsFile: true, Optional: true,
			Description: "placeholder captions (built-in font otherwise)",
		})
	}
	return reqs
}

func availability(s system.Status) string {
	switch {
	case s.Available:
		return "ok"
	case s.Optional:
		return "optional"
	default:
		return "missing"
	}
}

func serviceRow(name, url, usage string) []string {
	if url == "" {
		return []string{name, "off", "not configured", usage}
	}
	return []string{name, "configured", url, usage}
}

func storyService(cfg config.StoryConfig) string {
	if cfg.Engine != "ollama" {
		return ""
	}
	return cfg.OllamaURL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
