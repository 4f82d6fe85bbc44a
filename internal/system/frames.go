package system

import (
	"image"
	"sync"
)

// framesPerSize caps idle frames kept for one resolution. A 1080x1920 RGBA
// frame is about 8 MB, and a target never holds more frames than it has
// scene workers.
const framesPerSize = 4

// FramePool hands out zero-origin RGBA frames by resolution. Export targets
// render every scene at one size, so a run touches at most two keys.
type FramePool struct {
	mu    sync.Mutex
	idle  map[image.Point][]*image.RGBA
	limit int
}

var frames = NewFramePool(framesPerSize)

func NewFramePool(limit int) *FramePool {
	return &FramePool{idle: make(map[image.Point][]*image.RGBA), limit: max(1, limit)}
}

// GetFrame returns a frame of the given size from the shared pool. Pixels of
// a reused frame keep their previous content.
func GetFrame(width, height int) *image.RGBA {
	return frames.Get(width, height)
}

// PutFrame gives a frame back to the shared pool once nothing references it.
func PutFrame(img *image.RGBA) {
	frames.Put(img)
}

func (p *FramePool) Get(width, height int) *image.RGBA {
	size := image.Pt(width, height)
	p.mu.Lock()
	if list := p.idle[size]; len(list) > 0 {
		img := list[len(list)-1]
		list[len(list)-1] = nil
		p.idle[size] = list[:len(list)-1]
		p.mu.Unlock()
		return img
	}
	p.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// Put drops sub-images, frames with a foreign stride and frames beyond the
// per-size limit.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) || img.Stride != 4*img.Rect.Dx() || img.Rect.Empty() {
		return
	}
	size := img.Rect.Size()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle[size]) >= p.limit {
		return
	}
	p.idle[size] = append(p.idle[size], img)
}

// Idle reports how many frames of the size wait for reuse.
func (p *FramePool) Idle(width, height int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[image.Pt(width, height)])
}
