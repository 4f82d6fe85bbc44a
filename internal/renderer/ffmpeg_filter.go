package renderer

import (
	"fmt"
	"math"
	"strings"
)

// GenerateZoomPanFilter creates an FFmpeg zoompan filter that emits frames
// output frames of width x height following the keyframes.
func GenerateZoomPanFilter(keyframes []Keyframe, fps, frames, width, height int) string {
	if len(keyframes) == 0 {
		keyframes = []Keyframe{{Zoom: 1, FocusX: 0.5, FocusY: 0.5}}
	}
	if frames < 1 {
		frames = 1
	}

	zoomExpr := piecewise(keyframes, fps, func(kf Keyframe) float64 { return kf.Zoom })
	xExpr := fmt.Sprintf("(iw-iw/zoom)*(%s)", piecewise(keyframes, fps, func(kf Keyframe) float64 { return kf.FocusX }))
	yExpr := fmt.Sprintf("(ih-ih/zoom)*(%s)", piecewise(keyframes, fps, func(kf Keyframe) float64 { return kf.FocusY }))

	return fmt.Sprintf("zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d",
		zoomExpr, xExpr, yExpr, frames, width, height, fps)
}

// piecewise builds a nested if() expression over the output frame number
// that interpolates value linearly between consecutive keyframes.
func piecewise(keyframes []Keyframe, fps int, value func(Keyframe) float64) string {
	lastValue := value(keyframes[len(keyframes)-1])
	if len(keyframes) == 1 || constant(keyframes, value) {
		return fmt.Sprintf("%.6f", lastValue)
	}

	var b strings.Builder
	open := 0
	for i := 0; i < len(keyframes)-1; i++ {
		startFrame := frameAt(keyframes[i].Time, fps)
		endFrame := frameAt(keyframes[i+1].Time, fps)
		if endFrame <= startFrame {
			continue
		}
		v0, v1 := value(keyframes[i]), value(keyframes[i+1])
		// if(lte(on,end),v0+(on-start)/(end-start)*(v1-v0),...)
		fmt.Fprintf(&b, "if(lte(on,%d),%.6f+(on-%d)/%d*(%.6f),", endFrame, v0, startFrame, endFrame-startFrame, v1-v0)
		open++
	}
	fmt.Fprintf(&b, "%.6f", lastValue)
	b.WriteString(strings.Repeat(")", open))
	return b.String()
}

func constant(keyframes []Keyframe, value func(Keyframe) float64) bool {
	v := value(keyframes[0])
	for _, kf := range keyframes[1:] {
		if value(kf) != v {
			return false
		}
	}
	return true
}

func frameAt(t float64, fps int) int {
	return int(math.Round(t * float64(fps)))
}
