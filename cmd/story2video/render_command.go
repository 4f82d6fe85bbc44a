package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/effects"
	"github.com/ivlev/story2video/internal/engine"
	"github.com/ivlev/story2video/internal/illustration"
	"github.com/ivlev/story2video/internal/manifest"
	"github.com/ivlev/story2video/internal/narration"
	"github.com/ivlev/story2video/internal/scene"
	"github.com/ivlev/story2video/internal/story"
	"github.com/ivlev/story2video/internal/system"
	"github.com/ivlev/story2video/internal/textutil"
	"github.com/ivlev/story2video/internal/timeline"
	"github.com/ivlev/story2video/internal/video"
)

var errAllTargetsFailed = errors.New("every export target failed")

type renderOptions struct {
	story     storyOptions
	storyFile string
	format    string
	outputDir string
	parallel  bool
	keepWork  bool
	noCache   bool
	workers   int
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write (or load) a story and render it to video",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.apply(cmd, ctx.cfg)
			return runRender(cmd, ctx, &opts)
		},
	}
	opts.story.bind(cmd)
	flags := cmd.Flags()
	flags.StringVar(&opts.storyFile, "story", "", "Render a saved story YAML instead of writing a new one")
	flags.StringVar(&opts.format, "format", engine.FormatBoth, "Export format: reels, youtube or both")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "Output directory (default from config)")
	flags.BoolVar(&opts.parallel, "parallel", false, "Render export targets concurrently")
	flags.BoolVar(&opts.keepWork, "keep-work", false, "Keep per-target working directories")
	flags.BoolVar(&opts.noCache, "no-cache", false, "Regenerate scene assets for every target")
	flags.IntVar(&opts.workers, "workers", 0, "Parallel scenes per target (0 = from config or host)")
	return cmd
}

// apply overlays explicitly set flags on the loaded configuration.
func (o *renderOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Paths.OutputDir = o.outputDir
	}
	if flags.Changed("parallel") {
		cfg.Video.ParallelTargets = o.parallel
	}
	if flags.Changed("keep-work") {
		cfg.Paths.KeepWork = o.keepWork
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !o.noCache
	}
	if flags.Changed("workers") {
		cfg.Video.Workers = o.workers
	}
}

func runRender(cmd *cobra.Command, ctx *commandContext, opts *renderOptions) error {
	cfg, log := ctx.cfg, ctx.log

	st, err := loadOrGenerate(cmd.Context(), ctx, opts)
	if err != nil {
		return err
	}
	targets, err := engine.Targets(opts.format, st.Title, cfg.Paths.OutputDir)
	if err != nil {
		return err
	}

	project, err := buildProject(cmd.Context(), ctx)
	if err != nil {
		return err
	}
	log.Info().Str("run_id", project.RunID).Int("targets", len(targets)).Int("workers", project.Assembler.Workers).Msg("render started")

	m := project.Run(cmd.Context(), st, targets)

	manifestPath := filepath.Join(cfg.Paths.OutputDir, textutil.SlugOr(st.Title, "story")+"_manifest.yaml")
	if err := m.WriteFile(manifestPath); err != nil {
		log.Warn().Err(err).Msg("manifest not written")
	} else {
		log.Info().Str("path", manifestPath).Msg("manifest written")
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderManifest(m))
	if m.AllFailed() {
		return errAllTargetsFailed
	}
	return nil
}

func loadOrGenerate(ctx context.Context, cmdCtx *commandContext, opts *renderOptions) (story.Story, error) {
	if opts.storyFile == "" {
		return generateStory(ctx, cmdCtx, &opts.story)
	}
	st, err := story.ReadFile(opts.storyFile)
	if err != nil {
		return story.Story{}, err
	}
	cmdCtx.log.Info().Str("file", opts.storyFile).Int("scenes", len(st.Scenes)).Msg("story loaded")
	return st, nil
}

// buildProject wires providers and the assembler from the configuration.
func buildProject(ctx context.Context, cmdCtx *commandContext) (*engine.Project, error) {
	cfg, log := cmdCtx.cfg, cmdCtx.log

	voice, err := narration.New(cfg.Narration.Engine, cfg.Narration)
	if err != nil {
		return nil, err
	}
	effect, err := effects.ByName(cfg.Video.Motion)
	if err != nil {
		return nil, err
	}

	codec := cfg.Video.Encoder
	if codec == "" || codec == "auto" {
		codec = system.BestH264Encoder(ctx, cfg.Video.FFmpegPath)
	}
	workers := cfg.Video.Workers
	if workers == 0 {
		workers = system.DefaultWorkers()
	}
	log.Debug().Str("encoder", codec).Int("workers", workers).Msg("encoder selected")

	renderer := scene.NewRenderer(system.FFprobe{Binary: cfg.Video.FFprobePath},
		cfg.Video.ZoomStart, cfg.Video.ZoomEnd, cfg.Video.ZoomAnchor)
	assembler := &timeline.Assembler{
		Encoder: &video.FFmpegEncoder{
			Binary:       cfg.Video.FFmpegPath,
			Codec:        codec,
			Quality:      cfg.Video.Quality,
			AudioBitrate: cfg.Video.AudioBitrate,
		},
		Effect:  effect,
		FPS:     cfg.Video.FPS,
		Workers: workers,
		Log:     log,
	}
	return engine.NewProject(cfg, illustration.FromConfig(cfg.Illustration, log), voice, renderer, assembler, log), nil
}

func renderManifest(m *manifest.Manifest) string {
	rows := make([][]string, 0, len(m.Targets))
	for _, t := range m.Targets {
		status, detail := "ok", t.Output
		if !t.OK {
			status, detail = "failed", t.Error
		}
		rows = append(rows, []string{
			t.Name,
			fmt.Sprintf("%dx%d", t.Width, t.Height),
			status,
			strconv.Itoa(t.Scenes),
			fmt.Sprintf("%.1fs", t.Duration),
			t.Elapsed.Round(100 * time.Millisecond).String(),
			detail,
		})
	}
	return renderTable(
		[]string{"Target", "Size", "Status", "Scenes", "Length", "Elapsed", "Output / Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}
