// Package story produces the ordered scene list a video is built from.
package story

import (
	"context"
	"math"
)

const (
	MinSceneSeconds = 3.5
	MaxSceneSeconds = 10.0

	DefaultPrompt = "friendly illustration of the scene"
)

// Scene is one narrated, illustrated unit. It is never mutated after the
// engine returns it.
type Scene struct {
	Text     string  `yaml:"text"`
	Prompt   string  `yaml:"prompt"`
	Duration float64 `yaml:"duration"`
}

type Story struct {
	Title  string  `yaml:"title"`
	Scenes []Scene `yaml:"scenes"`
}

// Request carries the user inputs for a story.
type Request struct {
	Title   string
	Age     int
	Theme   string
	Moral   string
	Minutes int
	Scenes  int
}

// Engine generates a story for a request.
type Engine interface {
	Generate(ctx context.Context, req Request) (Story, error)
}

// Normalize clamps the scene count to at least one.
func (r Request) Normalize() Request {
	if r.Scenes < 1 {
		r.Scenes = 1
	}
	return r
}

// SceneDuration spreads the requested minutes across the scenes and clamps
// the result to [MinSceneSeconds, MaxSceneSeconds].
func SceneDuration(minutes, scenes int) float64 {
	if scenes < 1 {
		scenes = 1
	}
	d := float64(minutes) * 60 / float64(scenes)
	return math.Max(MinSceneSeconds, math.Min(MaxSceneSeconds, d))
}
