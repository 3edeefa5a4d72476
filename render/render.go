// Package render paints artifacts on an e-paper panel.
//
// An artifact is decoded completely before the panel is touched. The panel
// then gets exactly one refresh, so a bad artifact leaves the previous
// picture on screen instead of a half drawn frame.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var ErrDecode = errors.New("render: decode failed")

// Panel is the display the renderer draws on. epd.EPD satisfies it.
type Panel interface {
	Bounds() image.Rectangle
	UpdateDisplay(img image.Image, partial bool) error
	Sleep() error
}

// Scale selects how an artifact is fitted into the drawing area.
type Scale string

const (
	// Fit letterboxes the whole artifact inside the area.
	Fit Scale = "fit"
	// Fill covers the area and crops the overflow around the centre.
	Fill Scale = "fill"
)

type Options struct {
	// Rotation in degrees, a multiple of 90.
	Rotation int
	// Width and Height of the drawing area before rotation. Zero uses the
	// panel size.
	Width, Height int
	Scale         Scale
}

type Renderer struct {
	panel  Panel
	opts   Options
	logger *slog.Logger
}

func New(panel Panel, opts Options, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Scale == "" {
		opts.Scale = Fit
	}
	opts.Rotation = ((opts.Rotation % 360) + 360) % 360
	return &Renderer{panel: panel, opts: opts, logger: logger}
}

// Render decodes data and shows it.
func (r *Renderer) Render(data []byte) error {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	r.logger.Info("render: decoded artifact",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	if err := r.panel.UpdateDisplay(r.compose(img), false); err != nil {
		return fmt.Errorf("render: panel update: %w", err)
	}
	return nil
}

// Sleep puts the panel into its low power mode.
func (r *Renderer) Sleep() error {
	return r.panel.Sleep()
}

// logicalSize is the drawing area in the artifact's own orientation.
func (r *Renderer) logicalSize() (int, int) {
	b := r.panel.Bounds()
	w, h := b.Dx(), b.Dy()
	if r.opts.Rotation == 90 || r.opts.Rotation == 270 {
		w, h = h, w
	}
	if r.opts.Width > 0 {
		w = r.opts.Width
	}
	if r.opts.Height > 0 {
		h = r.opts.Height
	}
	return w, h
}

// compose clears a panel sized canvas and draws img onto it, scaled and
// rotated, in grayscale.
func (r *Renderer) compose(img image.Image) *image.Gray {
	w, h := r.logicalSize()
	var scaled *image.NRGBA
	if r.opts.Scale == Fill {
		scaled = imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
	} else {
		scaled = imaging.Fit(img, w, h, imaging.Lanczos)
	}
	return r.place(rotate(scaled, r.opts.Rotation))
}

// place centres img on a blank white canvas of the panel size.
func (r *Renderer) place(img image.Image) *image.Gray {
	bounds := r.panel.Bounds()
	canvas := image.NewGray(bounds)
	draw.Draw(canvas, bounds, &image.Uniform{color.White}, image.Point{}, draw.Src)
	sb := img.Bounds()
	off := image.Pt(
		bounds.Min.X+(bounds.Dx()-sb.Dx())/2,
		bounds.Min.Y+(bounds.Dy()-sb.Dy())/2)
	draw.Draw(canvas, sb.Sub(sb.Min).Add(off), img, sb.Min, draw.Src)
	return canvas
}

func rotate(img image.Image, degrees int) *image.NRGBA {
	switch degrees {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	}
	return imaging.Clone(img)
}
