package story

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteFile saves the story as YAML.
func WriteFile(path string, s Story) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal story: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write story: %w", err)
	}
	return nil
}

// ReadFile loads a story saved by WriteFile. Scenes without a duration get
// the minimum scene duration and scenes without a prompt the default one.
func ReadFile(path string) (Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Story{}, fmt.Errorf("read story: %w", err)
	}
	var s Story
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Story{}, fmt.Errorf("parse story %s: %w", path, err)
	}
	if len(s.Scenes) == 0 {
		return Story{}, errors.New("story has no scenes")
	}
	for i := range s.Scenes {
		sc := &s.Scenes[i]
		if strings.TrimSpace(sc.Text) == "" {
			return Story{}, fmt.Errorf("scene %d has no text", i+1)
		}
		if sc.Duration < 0 {
			return Story{}, fmt.Errorf("scene %d has negative duration", i+1)
		}
		if sc.Duration == 0 {
			sc.Duration = MinSceneSeconds
		}
		if strings.TrimSpace(sc.Prompt) == "" {
			sc.Prompt = DefaultPrompt
		}
	}
	return s, nil
}
