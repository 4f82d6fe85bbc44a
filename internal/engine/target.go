package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ivlev/story2video/internal/textutil"
)

const (
	FormatReels   = "reels"
	FormatYouTube = "youtube"
	FormatBoth    = "both"
)

// Target is one output aspect ratio of a run.
type Target struct {
	Name   string
	Suffix string
	Width  int
	Height int
	Output string
}

var presets = map[string]Target{
	FormatReels:   {Name: FormatReels, Suffix: "IG_9x16", Width: 1080, Height: 1920},
	FormatYouTube: {Name: FormatYouTube, Suffix: "YT_16x9", Width: 1920, Height: 1080},
}

// Targets expands a format selector into targets writing to outDir. File
// names are derived from the slugified story title.
func Targets(format, title, outDir string) ([]Target, error) {
	var names []string
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatReels, "ig", "9x16":
		names = []string{FormatReels}
	case FormatYouTube, "yt", "16x9":
		names = []string{FormatYouTube}
	case FormatBoth, "":
		names = []string{FormatReels, FormatYouTube}
	default:
		return nil, fmt.Errorf("unknown format %q (reels, youtube or both)", format)
	}

	base := textutil.SlugOr(title, "story")
	targets := make([]Target, 0, len(names))
	for _, name := range names {
		t := presets[name]
		t.Output = filepath.Join(outDir, fmt.Sprintf("%s_%s.mp4", base, t.Suffix))
		targets = append(targets, t)
	}
	return targets, nil
}

// WorkDirName is the per-target working directory name under the work root.
func WorkDirName(output, runID string) string {
	name := strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	return textutil.SlugOr(name, "target") + "-" + runID
}
