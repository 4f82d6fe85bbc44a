package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/story2video/internal/cache"
	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/illustration"
	"github.com/ivlev/story2video/internal/manifest"
	"github.com/ivlev/story2video/internal/narration"
	"github.com/ivlev/story2video/internal/scene"
	"github.com/ivlev/story2video/internal/source"
	"github.com/ivlev/story2video/internal/story"
	"github.com/ivlev/story2video/internal/system"
	"github.com/ivlev/story2video/internal/timeline"
)

var ErrWorkDirBusy = errors.New("working directory is locked by another render")

// Project renders one story into every requested export target.
type Project struct {
	Config    *config.Config
	Images    illustration.Provider
	Voice     narration.Synthesizer
	Renderer  *scene.Renderer
	Assembler *timeline.Assembler
	Log       zerolog.Logger
	RunID     string
}

func NewProject(cfg *config.Config, images illustration.Provider, voice narration.Synthesizer,
	renderer *scene.Renderer, assembler *timeline.Assembler, log zerolog.Logger) *Project {
	return &Project{
		Config:    cfg,
		Images:    images,
		Voice:     voice,
		Renderer:  renderer,
		Assembler: assembler,
		Log:       log,
		RunID:     uuid.NewString(),
	}
}

// Run renders the story for each target and never returns early: a target
// that fails (or panics) is recorded in the manifest and the rest proceed.
func (p *Project) Run(ctx context.Context, st story.Story, targets []Target) *manifest.Manifest {
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	m := manifest.New(p.RunID, st.Title)
	m.Targets = make([]manifest.TargetResult, len(targets))

	store := p.openCache()
	defer func() {
		if err := store.Close(); err != nil {
			p.Log.Warn().Err(err).Msg("cache cleanup failed")
		}
	}()

	if p.Config.Video.ParallelTargets && len(targets) > 1 {
		p.runParallel(ctx, st, targets, store, m.Targets)
	} else {
		for i, t := range targets {
			m.Targets[i] = p.renderTarget(ctx, st, t, store)
		}
	}
	return m
}

func (p *Project) openCache() *cache.Store {
	if !p.Config.Cache.Enabled {
		return nil
	}
	store, err := cache.New(filepath.Join(p.Config.Paths.WorkDir, "cache-"+p.RunID))
	if err != nil {
		p.Log.Warn().Err(err).Msg("asset cache disabled")
		return nil
	}
	return store
}

// runParallel отдаёт каждую цель в пул ants. Паники перехватываются в
// renderTarget; обработчик пула остаётся последней страховкой.
func (p *Project) runParallel(ctx context.Context, st story.Story, targets []Target, store *cache.Store, results []manifest.TargetResult) {
	pool, err := ants.NewPool(len(targets), ants.WithPanicHandler(func(v any) {
		p.Log.Error().Interface("panic", v).Msg("target worker panicked")
	}))
	if err != nil {
		p.Log.Warn().Err(err).Msg("worker pool unavailable, rendering targets sequentially")
		for i, t := range targets {
			results[i] = p.renderTarget(ctx, st, t, store)
		}
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, t := range targets {
		results[i] = failed(t, errors.New("target did not run"))
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = p.renderTarget(ctx, st, t, store)
		})
		if err != nil {
			wg.Done()
			results[i] = failed(t, fmt.Errorf("schedule target: %w", err))
		}
	}
	wg.Wait()
}

func failed(t Target, err error) manifest.TargetResult {
	return manifest.TargetResult{Name: t.Name, Width: t.Width, Height: t.Height, Output: t.Output, Error: err.Error()}
}

func (p *Project) renderTarget(ctx context.Context, st story.Story, t Target, store *cache.Store) (res manifest.TargetResult) {
	start := time.Now()
	res = manifest.TargetResult{Name: t.Name, Width: t.Width, Height: t.Height, Output: t.Output}
	log := p.Log.With().Str("target", t.Name).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.OK = false
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error().Str("error", res.Error).Msg("target render panicked")
		}
		res.Elapsed = time.Since(start)
	}()

	log.Info().Int("width", t.Width).Int("height", t.Height).Str("output", t.Output).Msg("rendering target")
	tl, err := p.render(ctx, st, t, store, log)
	if err != nil {
		res.Error = err.Error()
		log.Error().Err(err).Msg("target failed")
		return res
	}
	res.OK = true
	res.Scenes = len(tl.Entries)
	res.Duration = tl.Total()
	log.Info().Float64("seconds", tl.Total()).Dur("elapsed", time.Since(start)).Msg("target done")
	return res
}

func (p *Project) render(ctx context.Context, st story.Story, t Target, store *cache.Store, log zerolog.Logger) (timeline.Timeline, error) {
	if len(st.Scenes) == 0 {
		return timeline.Timeline{}, errors.New("story has no scenes")
	}
	if err := os.MkdirAll(filepath.Dir(t.Output), 0o755); err != nil {
		return timeline.Timeline{}, fmt.Errorf("create output dir: %w", err)
	}

	workDir := filepath.Join(p.Config.Paths.WorkDir, WorkDirName(t.Output, p.RunID))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return timeline.Timeline{}, fmt.Errorf("create work dir: %w", err)
	}
	lock := flock.New(workDir + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return timeline.Timeline{}, fmt.Errorf("lock work dir: %w", err)
	}
	if !locked {
		return timeline.Timeline{}, fmt.Errorf("%w: %s", ErrWorkDirBusy, workDir)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	clips, err := p.prepareScenes(ctx, st, t, workDir, store)
	if err != nil {
		return timeline.Timeline{}, err
	}

	tl, err := p.Assembler.Assemble(ctx, clips, t.Width, t.Height, t.Output, workDir)
	if err != nil {
		return timeline.Timeline{}, err
	}

	if p.Config.Paths.KeepWork {
		log.Info().Str("work_dir", workDir).Msg("keeping working directory")
	} else if err := os.RemoveAll(workDir); err != nil {
		log.Warn().Err(err).Str("work_dir", workDir).Msg("cleanup failed")
	}
	return tl, nil
}

// prepareScenes generates the picture and narration of every scene at the
// target resolution and turns them into clips in scene order.
func (p *Project) prepareScenes(ctx context.Context, st story.Story, t Target, workDir string, store *cache.Store) ([]scene.Clip, error) {
	clips := make([]scene.Clip, len(st.Scenes))
	voiceID := narration.Describe(p.Config.Narration.Engine, p.Config.Narration)
	size := strconv.Itoa(t.Width) + "x" + strconv.Itoa(t.Height)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.Assembler.Workers))
	for i, sc := range st.Scenes {
		g.Go(func() error {
			prompt := sc.Prompt
			if strings.TrimSpace(prompt) == "" {
				prompt = story.DefaultPrompt
			}
			imagePath := filepath.Join(workDir, fmt.Sprintf("scene_%02d.png", i+1))
			err := store.Fetch(gctx, cache.Key("image", prompt, size), ".png", imagePath, func(ctx context.Context, path string) error {
				img, err := p.Images.Image(ctx, prompt, t.Width, t.Height)
				if err != nil {
					return err
				}
				err = source.SavePNG(path, img)
				if rgba, ok := img.(*image.RGBA); ok {
					system.PutFrame(rgba)
				}
				return err
			})
			if err != nil {
				return fmt.Errorf("scene %d illustration: %w", i+1, err)
			}

			audioPath := filepath.Join(workDir, fmt.Sprintf("scene_%02d.wav", i+1))
			err = store.Fetch(gctx, cache.Key("narration", sc.Text, voiceID), ".wav", audioPath, func(ctx context.Context, path string) error {
				return p.Voice.Synthesize(ctx, sc.Text, path)
			})
			if err != nil {
				return fmt.Errorf("scene %d narration: %w", i+1, err)
			}

			clip, err := p.Renderer.Render(gctx, i, sc, imagePath, audioPath)
			if err != nil {
				return err
			}
			clips[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}
