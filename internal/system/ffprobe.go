package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// FFprobe reads media durations with the ffprobe binary.
type FFprobe struct {
	Binary string
}

// Duration returns the length of the media file in seconds. The container
// duration wins; the longest audio stream is used when it is missing.
func (p FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseDuration(out)
}

func parseDuration(payload []byte) (float64, error) {
	var res probeResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	if d, ok := seconds(res.Format.Duration); ok {
		return d, nil
	}
	best, found := 0.0, false
	for _, s := range res.Streams {
		if !strings.EqualFold(s.CodecType, "audio") {
			continue
		}
		if d, ok := seconds(s.Duration); ok && d > best {
			best, found = d, true
		}
	}
	if !found {
		return 0, errors.New("ffprobe: duration unavailable")
	}
	return best, nil
}

func seconds(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0, false
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
