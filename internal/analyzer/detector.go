// Package analyzer finds the visually busy regions of an illustration so
// the camera can drift towards them.
package analyzer

import (
	"fmt"
	"image"
)

// Block is a detected region of interest in image coordinates.
type Block struct {
	Rect image.Rectangle
	// Density is the share of edge pixels inside Rect, 0..1.
	Density float64
}

type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

// Focus returns the normalized centre of the strongest block, weighting
// area by edge density. ok is false when nothing stands out.
func Focus(d Detector, img image.Image) (x, y float64, ok bool) {
	blocks, err := d.Detect(img)
	if err != nil || len(blocks) == 0 {
		return 0.5, 0.5, false
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return 0.5, 0.5, false
	}

	best, bestScore := blocks[0], -1.0
	for _, b := range blocks {
		score := float64(b.Rect.Dx()*b.Rect.Dy()) * b.Density
		if score > bestScore {
			best, bestScore = b, score
		}
	}
	// блок во весь кадр ничего не говорит о композиции
	if best.Rect.Dx()*best.Rect.Dy()*10 >= bounds.Dx()*bounds.Dy()*9 {
		return 0.5, 0.5, false
	}
	cx := float64(best.Rect.Min.X+best.Rect.Max.X)/2 - float64(bounds.Min.X)
	cy := float64(best.Rect.Min.Y+best.Rect.Max.Y)/2 - float64(bounds.Min.Y)
	return cx / float64(bounds.Dx()), cy / float64(bounds.Dy()), true
}
