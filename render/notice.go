package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	noticeMargin = 10
	glyphWidth   = 7
	lineHeight   = 16
)

// ShowError paints a full screen notice with msg. It costs a full refresh,
// so callers only use it while nothing valid is on the panel.
func (r *Renderer) ShowError(msg string) error {
	w, h := r.logicalSize()
	scale := w / 270
	if scale < 1 {
		scale = 1
	}
	small := image.NewGray(image.Rect(0, 0, w/scale, h/scale))
	draw.Draw(small, small.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  small,
		Src:  image.Black,
		Face: basicfont.Face7x13,
	}
	y := noticeMargin + lineHeight
	for _, line := range append([]string{"Error:"}, wrap(msg, (small.Bounds().Dx()-2*noticeMargin)/glyphWidth)...) {
		d.Dot = fixed.P(noticeMargin, y)
		d.DrawString(line)
		y += lineHeight
	}

	big := imaging.Resize(small, small.Bounds().Dx()*scale, small.Bounds().Dy()*scale, imaging.NearestNeighbor)
	if err := r.panel.UpdateDisplay(r.place(rotate(big, r.opts.Rotation)), false); err != nil {
		return fmt.Errorf("render: error notice: %w", err)
	}
	return nil
}

// wrap splits s into lines of at most width characters, breaking on spaces
// where possible.
func wrap(s string, width int) []string {
	if width < 1 {
		width = 1
	}
	var lines []string
	var cur string
	for _, word := range strings.Fields(s) {
		for len(word) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			lines = append(lines, word[:width])
			word = word[width:]
		}
		switch {
		case cur == "":
			cur = word
		case len(cur)+1+len(word) <= width:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
