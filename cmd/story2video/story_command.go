package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/story"
)

type storyOptions struct {
	title   string
	age     int
	theme   string
	moral   string
	minutes int
	scenes  int
}

func (o *storyOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.title, "title", "Mina and the Moon Kite", "Hero or story title")
	flags.IntVar(&o.age, "age", 5, "Target age (3-9)")
	flags.StringVar(&o.theme, "theme", "kindness and sky adventures", "Theme or setting")
	flags.StringVar(&o.moral, "moral", "kindness", "Moral: "+strings.Join(moralNames(), ", ")+" or free text")
	flags.IntVar(&o.minutes, "minutes", 2, "Approximate duration in minutes")
	flags.IntVar(&o.scenes, "scenes", 8, "Number of scenes")
}

func (o *storyOptions) request() (story.Request, error) {
	if o.age < 3 || o.age > 9 {
		return story.Request{}, fmt.Errorf("--age must be between 3 and 9, got %d", o.age)
	}
	if o.minutes < 1 {
		return story.Request{}, fmt.Errorf("--minutes must be positive, got %d", o.minutes)
	}
	if o.scenes < 1 {
		return story.Request{}, fmt.Errorf("--scenes must be positive, got %d", o.scenes)
	}
	return story.Request{
		Title:   strings.TrimSpace(o.title),
		Age:     o.age,
		Theme:   strings.TrimSpace(o.theme),
		Moral:   strings.TrimSpace(o.moral),
		Minutes: o.minutes,
		Scenes:  o.scenes,
	}, nil
}

func moralNames() []string {
	return slices.Sorted(maps.Keys(story.Morals))
}

func newStoryEngine(cfg config.StoryConfig, log zerolog.Logger) story.Engine {
	if cfg.Engine == "ollama" {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		return story.WithFallback(story.NewOllama(cfg.OllamaURL, cfg.OllamaModel, timeout), log)
	}
	return story.RuleBased{}
}

func generateStory(ctx context.Context, cmdCtx *commandContext, opts *storyOptions) (story.Story, error) {
	req, err := opts.request()
	if err != nil {
		return story.Story{}, err
	}
	st, err := newStoryEngine(cmdCtx.cfg.Story, cmdCtx.log).Generate(ctx, req)
	if err != nil {
		return story.Story{}, fmt.Errorf("generate story: %w", err)
	}
	cmdCtx.log.Info().Str("title", st.Title).Int("scenes", len(st.Scenes)).Str("engine", cmdCtx.cfg.Story.Engine).Msg("story ready")
	return st, nil
}

func newStoryCommand(ctx *commandContext) *cobra.Command {
	var opts storyOptions
	var savePath string

	cmd := &cobra.Command{
		Use:   "story",
		Short: "Write a story and print or save it as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := generateStory(cmd.Context(), ctx, &opts)
			if err != nil {
				return err
			}
			if savePath != "" {
				if err := story.WriteFile(savePath, st); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Story saved to %s\n", savePath)
				return nil
			}
			data, err := yaml.Marshal(st)
			if err != nil {
				return fmt.Errorf("encode story: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&savePath, "save", "", "Write the story to this YAML file instead of stdout")
	return cmd
}
