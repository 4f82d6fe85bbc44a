package illustration

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/story2video/internal/system"
	"github.com/ivlev/story2video/internal/textutil"
)

var (
	frameColor         = color.RGBA{255, 230, 200, 255}
	bubbleFill         = color.RGBA{255, 255, 255, 255}
	bubbleOutlineColor = color.RGBA{240, 220, 200, 255}
	textColor          = color.RGBA{60, 60, 60, 255}
)

const maxCaptionRunes = 80

// Placeholder draws an offline title card: a warm gradient, a rounded frame
// and a speech bubble holding the first clause of the prompt.
type Placeholder struct {
	fontPath string

	once sync.Once
	font *opentype.Font
}

func NewPlaceholder(fontPath string) *Placeholder {
	return &Placeholder{fontPath: fontPath}
}

// Image never fails for positive sizes. The returned frame comes from the
// shared image pool; callers may hand it back with system.PutFrame.
func (p *Placeholder) Image(_ context.Context, prompt string, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	img := system.GetFrame(width, height)
	paintGradient(img)

	margin := int(float64(min(width, height)) * 0.03)
	drawRoundedRect(img, image.Rect(margin, margin, width-margin, height-margin), margin, nil, frameColor, 6)

	bubbleW := int(float64(width) * 0.86)
	bubbleH := int(float64(height) * 0.18)
	bx := (width - bubbleW) / 2
	by := int(float64(height) * 0.72)
	bubble := image.Rect(bx, by, bx+bubbleW, by+bubbleH)
	drawRoundedRect(img, bubble, 24, &bubbleFill, bubbleOutlineColor, 4)

	caption := textutil.Truncate(textutil.FirstClause(prompt), maxCaptionRunes)
	if caption != "" {
		p.drawCaption(img, bubble, caption, float64(int(float64(bubbleH)*0.28)))
	}
	return img, nil
}

func (p *Placeholder) drawCaption(img *image.RGBA, bubble image.Rectangle, caption string, size float64) {
	face := p.face(size)
	width := font.MeasureString(face, caption).Ceil()
	if limit := bubble.Dx() * 94 / 100; width > limit && width > 0 {
		// shrink once so long captions stay inside the bubble
		face = p.face(size * float64(limit) / float64(width))
		width = font.MeasureString(face, caption).Ceil()
	}

	metrics := face.Metrics()
	textH := (metrics.Ascent + metrics.Descent).Ceil()
	x := bubble.Min.X + (bubble.Dx()-width)/2
	y := bubble.Min.Y + (bubble.Dy()-textH)/2 + metrics.Ascent.Ceil()

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(caption)
}

// face resolves the configured font, then Go Regular, then the fixed basic font.
func (p *Placeholder) face(size float64) font.Face {
	p.once.Do(func() {
		if p.fontPath != "" {
			if data, err := os.ReadFile(p.fontPath); err == nil {
				if f, err := opentype.Parse(data); err == nil {
					p.font = f
					return
				}
			}
		}
		if f, err := opentype.Parse(goregular.TTF); err == nil {
			p.font = f
		}
	})
	if p.font == nil || size < 1 {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(p.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

func paintGradient(img *image.RGBA) {
	h := img.Rect.Dy()
	w := img.Rect.Dx()
	for y := 0; y < h; y++ {
		t := float64(y) / float64(h)
		r := uint8(255 - 20*t)
		g := uint8(250 - 50*t)
		b := uint8(240 - 60*t)
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			row[x], row[x+1], row[x+2], row[x+3] = r, g, b, 255
		}
	}
}

// drawRoundedRect strokes r with an outline of the given width and fills
// the interior when fill is set.
func drawRoundedRect(img *image.RGBA, r image.Rectangle, radius int, fill *color.RGBA, outline color.RGBA, width int) {
	r = r.Intersect(img.Rect)
	if r.Empty() {
		return
	}
	inner := r.Inset(width)
	innerRadius := max(radius-width, 0)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !inRoundedRect(x, y, r, radius) {
				continue
			}
			if !inner.Empty() && inRoundedRect(x, y, inner, innerRadius) {
				if fill != nil {
					img.SetRGBA(x, y, *fill)
				}
				continue
			}
			img.SetRGBA(x, y, outline)
		}
	}
}

func inRoundedRect(x, y int, r image.Rectangle, radius int) bool {
	if !image.Pt(x, y).In(r) {
		return false
	}
	radius = min(radius, r.Dx()/2, r.Dy()/2)
	if radius <= 0 {
		return true
	}
	cx, cy := x, y
	switch {
	case x < r.Min.X+radius:
		cx = r.Min.X + radius
	case x >= r.Max.X-radius:
		cx = r.Max.X - radius - 1
	}
	switch {
	case y < r.Min.Y+radius:
		cy = r.Min.Y + radius
	case y >= r.Max.Y-radius:
		cy = r.Max.Y - radius - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}
