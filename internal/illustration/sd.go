package illustration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
)

// SDClient talks to the AUTOMATIC1111 Stable Diffusion WebUI API.
type SDClient struct {
	baseURL    string
	steps      int
	sampler    string
	cfgScale   float64
	httpClient *http.Client
}

type SDOption func(*SDClient)

func WithGenerationParams(steps int, sampler string, cfgScale float64) SDOption {
	return func(c *SDClient) {
		if steps > 0 {
			c.steps = steps
		}
		if sampler != "" {
			c.sampler = sampler
		}
		if cfgScale > 0 {
			c.cfgScale = cfgScale
		}
	}
}

func WithTimeout(timeout time.Duration) SDOption {
	return func(c *SDClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithHTTPClient(client *http.Client) SDOption {
	return func(c *SDClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewSDClient(baseURL string, opts ...SDOption) *SDClient {
	c := &SDClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		steps:      25,
		sampler:    "Euler a",
		cfgScale:   6.5,
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type txt2imgRequest struct {
	Prompt       string  `json:"prompt"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Steps        int     `json:"steps"`
	SamplerIndex string  `json:"sampler_index"`
	CFGScale     float64 `json:"cfg_scale"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

func (c *SDClient) Image(ctx context.Context, prompt string, width, height int) (image.Image, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(txt2imgRequest{
		Prompt:       prompt,
		Width:        width,
		Height:       height,
		Steps:        c.steps,
		SamplerIndex: c.sampler,
		CFGScale:     c.cfgScale,
	})
	if err != nil {
		return nil, fmt.Errorf("encode txt2img request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sdapi/v1/txt2img", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build txt2img request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("txt2img request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("txt2img returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var payload txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode txt2img response: %w", err)
	}
	if len(payload.Images) == 0 {
		return nil, errors.New("txt2img returned no images")
	}

	raw, err := decodeBase64Image(payload.Images[0])
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	return fitExact(img, width, height), nil
}

func decodeBase64Image(value string) ([]byte, error) {
	// some WebUI builds prefix the payload with a data URI header
	if idx := strings.Index(value, ","); idx >= 0 && strings.HasPrefix(value, "data:") {
		value = value[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return raw, nil
}

// fitExact rescales img to width x height when the service ignored the
// requested size.
func fitExact(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
