package analyzer

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// ContrastDetector finds edge clusters with a Sobel operator on a
// downscaled grayscale copy of the image.
type ContrastDetector struct {
	// MinBlockArea is measured in analysis pixels.
	MinBlockArea  int
	EdgeThreshold float64
	// AnalysisSize caps the longer side of the analysed copy.
	AnalysisSize int
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  64,
		EdgeThreshold: 30.0,
		AnalysisSize:  240,
	}
}

func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	gray, scale := d.downscale(img)
	edges := sobelEdgeDetection(gray, d.EdgeThreshold)
	dilated := dilate(edges, 5, 2)

	origin := img.Bounds().Min
	var blocks []Block
	for _, r := range findContours(dilated) {
		if r.Dx()*r.Dy() < d.MinBlockArea {
			continue
		}
		blocks = append(blocks, Block{
			Rect: image.Rect(
				origin.X+int(float64(r.Min.X)*scale), origin.Y+int(float64(r.Min.Y)*scale),
				origin.X+int(math.Ceil(float64(r.Max.X)*scale)), origin.Y+int(math.Ceil(float64(r.Max.Y)*scale)),
			),
			Density: edgeDensity(edges, r),
		})
	}
	return blocks, nil
}

// downscale returns a zero-origin grayscale copy whose longer side is at
// most AnalysisSize, and the factor mapping it back to img.
func (d *ContrastDetector) downscale(img image.Image) (*image.Gray, float64) {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	scale := 1.0
	if d.AnalysisSize > 0 && longest > d.AnalysisSize {
		scale = float64(longest) / float64(d.AnalysisSize)
	}
	w := max(1, int(float64(b.Dx())/scale))
	h := max(1, int(float64(b.Dy())/scale))
	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	return gray, float64(b.Dx()) / float64(w)
}

func sobelEdgeDetection(gray *image.Gray, threshold float64) *image.Gray {
	bounds := gray.Bounds()
	edges := image.NewGray(bounds)

	gx := [3][3]int{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	gy := [3][3]int{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var sumX, sumY float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					pixel := float64(gray.GrayAt(x+kx, y+ky).Y)
					sumX += pixel * float64(gx[ky+1][kx+1])
					sumY += pixel * float64(gy[ky+1][kx+1])
				}
			}
			if math.Hypot(sumX, sumY) > threshold {
				edges.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return edges
}

// dilate joins nearby edges so that one object becomes one component.
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	bounds := img.Bounds()
	result := image.NewGray(bounds)
	copy(result.Pix, img.Pix)

	half := kernelSize / 2
	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(bounds)
		for y := bounds.Min.Y + half; y < bounds.Max.Y-half; y++ {
			for x := bounds.Min.X + half; x < bounds.Max.X-half; x++ {
				var maxVal uint8
				for ky := -half; ky <= half && maxVal < 255; ky++ {
					for kx := -half; kx <= half; kx++ {
						if v := result.GrayAt(x+kx, y+ky).Y; v > maxVal {
							maxVal = v
						}
					}
				}
				temp.SetGray(x, y, color.Gray{Y: maxVal})
			}
		}
		result = temp
	}
	return result
}

// findContours returns the bounding boxes of 4-connected bright regions.
func findContours(img *image.Gray) []image.Rectangle {
	bounds := img.Bounds()
	visited := make([]bool, bounds.Dx()*bounds.Dy())
	index := func(x, y int) int { return (y-bounds.Min.Y)*bounds.Dx() + (x - bounds.Min.X) }

	var contours []image.Rectangle
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y > 128 && !visited[index(x, y)] {
				contours = append(contours, floodFill(img, visited, index, x, y))
			}
		}
	}
	return contours
}

func floodFill(img *image.Gray, visited []bool, index func(x, y int) int, startX, startY int) image.Rectangle {
	bounds := img.Bounds()
	minX, minY, maxX, maxY := startX, startY, startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !p.In(bounds) || visited[index(p.X, p.Y)] || img.GrayAt(p.X, p.Y).Y <= 128 {
			continue
		}
		visited[index(p.X, p.Y)] = true

		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)

		stack = append(stack,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func edgeDensity(edges *image.Gray, r image.Rectangle) float64 {
	r = r.Intersect(edges.Bounds())
	if r.Empty() {
		return 0
	}
	var n int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if edges.GrayAt(x, y).Y > 0 {
				n++
			}
		}
	}
	return float64(n) / float64(r.Dx()*r.Dy())
}
