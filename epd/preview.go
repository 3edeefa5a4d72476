package epd

import (
	"image"
	"image/png"
	"os"
	"path/filepath"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Preview is a panel backed by a PNG file, for running without hardware.
// Each refresh rewrites the file with the dithered frame the real panel
// would show.
type Preview struct {
	path      string
	image     *image1bit.VerticalLSB
	refreshes int
}

func NewPreview(path string, width, height int) *Preview {
	return &Preview{
		path:  path,
		image: image1bit.NewVerticalLSB(image.Rect(0, 0, width, height)),
	}
}

func (p *Preview) UpdateDisplay(img image.Image, partial bool) error {
	dither(p.image, img)
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(f, p.image); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return err
	}
	p.refreshes++
	return nil
}

func (p *Preview) Clear() error {
	return p.UpdateDisplay(&image.Uniform{image1bit.On}, false)
}

// Refreshes counts successful UpdateDisplay calls.
func (p *Preview) Refreshes() int {
	return p.refreshes
}

func (p *Preview) Sleep() error { return nil }

func (p *Preview) Close() error { return nil }

func (p *Preview) Bounds() image.Rectangle {
	return p.image.Bounds()
}
