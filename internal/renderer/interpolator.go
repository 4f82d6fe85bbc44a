package renderer

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Keyframe pins the zoom factor and focus point at a moment of a clip.
// FocusX/FocusY are relative to the frame: 0.5, 0.5 is the center.
type Keyframe struct {
	Time   float64
	Zoom   float64
	FocusX float64
	FocusY float64
}

// CameraState represents the camera at a specific moment
type CameraState struct {
	FocusX float64
	FocusY float64
	Zoom   float64 // 1.0 = no zoom
}

// Motion is a linear zoom from From to To over Duration seconds, anchored
// at a fixed focus point.
type Motion struct {
	From     float64
	To       float64
	Duration float64
	FocusX   float64
	FocusY   float64
}

// LinearZoom returns a centered zoom trajectory.
func LinearZoom(from, to, duration float64) Motion {
	return Motion{From: from, To: to, Duration: duration, FocusX: 0.5, FocusY: 0.5}
}

// Anchored moves the focus point to the named anchor.
func (m Motion) Anchored(anchor string, sceneIndex int) Motion {
	m.FocusX, m.FocusY = AnchorFocus(anchor, sceneIndex)
	return m
}

func (m Motion) Keyframes() []Keyframe {
	return []Keyframe{
		{Time: 0, Zoom: m.From, FocusX: m.FocusX, FocusY: m.FocusY},
		{Time: m.Duration, Zoom: m.To, FocusX: m.FocusX, FocusY: m.FocusY},
	}
}

// ScaleAt returns the zoom factor t seconds into the clip.
func (m Motion) ScaleAt(t float64) float64 {
	return InterpolateKeyframes(m.Keyframes(), t).Zoom
}

// InterpolateKeyframes calculates camera state at a given time by linear
// interpolation between the surrounding keyframes
func InterpolateKeyframes(keyframes []Keyframe, currentTime float64) CameraState {
	if len(keyframes) == 0 {
		return CameraState{FocusX: 0.5, FocusY: 0.5, Zoom: 1.0}
	}

	first, last := keyframes[0], keyframes[len(keyframes)-1]
	if currentTime <= first.Time {
		return stateOf(first)
	}
	if currentTime >= last.Time {
		return stateOf(last)
	}

	prev, next := first, last
	for i := 0; i < len(keyframes)-1; i++ {
		if currentTime >= keyframes[i].Time && currentTime < keyframes[i+1].Time {
			prev, next = keyframes[i], keyframes[i+1]
			break
		}
	}

	span := next.Time - prev.Time
	if span <= 0 {
		return stateOf(next)
	}
	t := (currentTime - prev.Time) / span

	return CameraState{
		FocusX: lerp(prev.FocusX, next.FocusX, t),
		FocusY: lerp(prev.FocusY, next.FocusY, t),
		Zoom:   lerp(prev.Zoom, next.Zoom, t),
	}
}

func stateOf(kf Keyframe) CameraState {
	return CameraState{FocusX: kf.FocusX, FocusY: kf.FocusY, Zoom: kf.Zoom}
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

var anchors = map[string][2]float64{
	"center":       {0.5, 0.5},
	"top-left":     {0, 0},
	"top-right":    {1, 0},
	"bottom-left":  {0, 1},
	"bottom-right": {1, 1},
}

var anchorOrder = []string{"center", "top-left", "top-right", "bottom-left", "bottom-right"}

// AnchorFocus maps an anchor name to a focus point. "random" picks one per
// scene index, stable across runs; unknown names mean center.
func AnchorFocus(anchor string, sceneIndex int) (float64, float64) {
	name := strings.ToLower(strings.TrimSpace(anchor))
	if name == "random" {
		h := fnv.New32a()
		h.Write([]byte(strconv.Itoa(sceneIndex)))
		name = anchorOrder[h.Sum32()%uint32(len(anchorOrder))]
	}
	focus, ok := anchors[name]
	if !ok {
		focus = anchors["center"]
	}
	return focus[0], focus[1]
}
