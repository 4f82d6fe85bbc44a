package effects

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/story2video/internal/config"
)

func params() config.SegmentParams {
	return config.SegmentParams{
		Width: 1080, Height: 1920, FPS: 30, Frames: 150, Duration: 5,
		ZoomFrom: 1.0, ZoomTo: 1.05, FocusX: 0.5, FocusY: 0.5,
	}
}

func TestKenBurnsFilter(t *testing.T) {
	filter := KenBurnsEffect{}.GenerateFilter(params())

	assert.True(t, strings.HasPrefix(filter, "scale=2160:3840:force_original_aspect_ratio=decrease,pad=2160:3840"))
	assert.Contains(t, filter, "zoompan=z='if(lte(on,150),1.000000+(on-0)/150*(0.050000),1.050000)'")
	assert.Contains(t, filter, ":d=150:s=1080x1920:fps=30")
	assert.True(t, strings.HasSuffix(filter, ",scale=1080:1920,setsar=1"))
}

func TestStaticFilter(t *testing.T) {
	filter := StaticEffect{}.GenerateFilter(params())
	assert.Contains(t, filter, "loop=loop=149:size=1:start=0")
	assert.NotContains(t, filter, "zoompan")
}

func TestByName(t *testing.T) {
	e, err := ByName("")
	require.NoError(t, err)
	assert.IsType(t, KenBurnsEffect{}, e)

	e, err = ByName("Static")
	require.NoError(t, err)
	assert.IsType(t, StaticEffect{}, e)

	_, err = ByName("spin")
	assert.Error(t, err)
}
