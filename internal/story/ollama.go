package story

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/story2video/internal/fallback"
)

const storytellerPrompt = "You are a children's storyteller. Write a short story split into SCENES. " +
	"Return strict JSON with keys: title (string), scenes (array of objects with 'text' and 'prompt'). " +
	"Age-appropriate (3-8), friendly tone, simple words, each scene 1-3 sentences, and a gentle arc."

var errNoScenes = errors.New("no scenes in model output")

// Ollama asks a local Ollama server for the story. Any failure is returned
// to the caller; use WithFallback to recover from it.
type Ollama struct {
	BaseURL    string
	Model      string
	httpClient *http.Client
}

type OllamaOption func(*Ollama)

func WithHTTPClient(client *http.Client) OllamaOption {
	return func(o *Ollama) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func NewOllama(baseURL, model string, timeout time.Duration, opts ...OllamaOption) *Ollama {
	o := &Ollama{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type modelStory struct {
	Title  string `json:"title"`
	Scenes []struct {
		Text   string `json:"text"`
		Prompt string `json:"prompt"`
	} `json:"scenes"`
}

func (o *Ollama) Generate(ctx context.Context, req Request) (Story, error) {
	req = req.Normalize()

	raw, err := o.complete(ctx, buildPrompt(req))
	if err != nil {
		return Story{}, err
	}

	var parsed modelStory
	if err := decodeModelJSON(raw, &parsed); err != nil {
		return Story{}, fmt.Errorf("parse model story: %w", err)
	}
	if len(parsed.Scenes) == 0 {
		return Story{}, errNoScenes
	}

	duration := SceneDuration(req.Minutes, req.Scenes)
	scenes := make([]Scene, 0, req.Scenes)
	for i, s := range parsed.Scenes {
		if i == req.Scenes {
			break
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			return Story{}, fmt.Errorf("scene %d has no text", i+1)
		}
		prompt := strings.TrimSpace(s.Prompt)
		if prompt == "" {
			prompt = DefaultPrompt
		}
		scenes = append(scenes, Scene{Text: text, Prompt: prompt, Duration: duration})
	}
	if len(scenes) < req.Scenes {
		// fill the missing positions from the rule-based skeleton
		filler := Compose(req).Scenes
		scenes = append(scenes, filler[len(scenes):]...)
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		title = req.Title
	}
	return Story{Title: title, Scenes: scenes}, nil
}

func (o *Ollama) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: o.Model, Prompt: prompt, Stream: false, Format: "json"})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama returned %s: %s", resp.Status, snippet(string(data)))
	}

	var gen generateResponse
	if err := json.Unmarshal(data, &gen); err != nil {
		return "", fmt.Errorf("decode ollama envelope: %w", err)
	}
	return gen.Response, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(storytellerPrompt)
	fmt.Fprintf(&b, "\nTitle: %s\nAge: %d\nTheme: %s\nMoral: %s\nScenes: %d\nDuration minutes: %d\n",
		req.Title, req.Age, req.Theme, req.Moral, req.Scenes, req.Minutes)
	b.WriteString("Return only JSON.")
	return b.String()
}

// WithFallback returns an engine that uses primary and falls back to the
// rule-based engine with the same request on any error.
func WithFallback(primary Engine, log zerolog.Logger) Engine {
	return fallbackEngine{chain: fallback.Chain[Request, Story]{
		Name:     "story",
		Primary:  primary.Generate,
		Fallback: RuleBased{}.Generate,
		Log:      log,
	}}
}

type fallbackEngine struct {
	chain fallback.Chain[Request, Story]
}

func (f fallbackEngine) Generate(ctx context.Context, req Request) (Story, error) {
	return f.chain.Run(ctx, req.Normalize())
}

// decodeModelJSON accepts bare JSON, fenced JSON or JSON wrapped in prose.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	extracted := extractObject(stripCodeFence(trimmed))
	if extracted == "" || extracted == trimmed {
		return fmt.Errorf("%w (payload: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w (payload: %s)", err, snippet(extracted))
	}
	return nil
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	body := strings.TrimLeft(content[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func extractObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	if r := []rune(clean); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}
