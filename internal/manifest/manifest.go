// Package manifest records what a run produced for each export target.
package manifest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type TargetResult struct {
	Name     string        `yaml:"name"`
	Width    int           `yaml:"width"`
	Height   int           `yaml:"height"`
	Output   string        `yaml:"output"`
	OK       bool          `yaml:"ok"`
	Error    string        `yaml:"error,omitempty"`
	Scenes   int           `yaml:"scenes,omitempty"`
	Duration float64       `yaml:"duration_seconds,omitempty"`
	Elapsed  time.Duration `yaml:"elapsed"`
}

type Manifest struct {
	RunID     string         `yaml:"run_id"`
	Title     string         `yaml:"title"`
	CreatedAt time.Time      `yaml:"created_at"`
	Targets   []TargetResult `yaml:"targets"`
}

func New(runID, title string) *Manifest {
	return &Manifest{RunID: runID, Title: title, CreatedAt: time.Now().UTC()}
}

func (m *Manifest) Succeeded() []TargetResult {
	return m.filter(true)
}

func (m *Manifest) Failed() []TargetResult {
	return m.filter(false)
}

// AllFailed reports whether no target produced a video.
func (m *Manifest) AllFailed() bool {
	return len(m.Targets) > 0 && len(m.Succeeded()) == 0
}

func (m *Manifest) filter(ok bool) []TargetResult {
	var out []TargetResult
	for _, t := range m.Targets {
		if t.OK == ok {
			out = append(out, t)
		}
	}
	return out
}

func (m *Manifest) WriteFile(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
