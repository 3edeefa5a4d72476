package epd

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/MaxHalford/halfgone"
	"github.com/disintegration/imaging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// ErrBusyTimeout is returned when the controller never releases BUSY.
var ErrBusyTimeout = errors.New("epd: busy timeout")

// busyTimeout bounds a single wait on the BUSY line. A full refresh takes
// a few seconds at most.
var busyTimeout = 30 * time.Second

// bus is the 4-wire SPI link shared by the controllers. Like the periph
// errorHandler, the first failure is kept and every later operation becomes
// a no-op, so command sequences read straight through and the error is
// checked once at the end.
type bus struct {
	c    spi.Conn
	dc   gpio.PinOut
	cs   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIO

	err error
}

func newBus(s spi.Port, freq physic.Frequency, dc, cs, rst gpio.PinOut, busy gpio.PinIO, pull gpio.Pull) (*bus, error) {
	if dc == gpio.INVALID {
		return nil, errors.New("epd: use nil for dc to use 3-wire mode, do not use gpio.INVALID")
	}
	c, err := s.Connect(freq, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}
	b := &bus{c: c, dc: dc, cs: cs, rst: rst, busy: busy}
	b.out(b.rst, gpio.High)
	b.out(b.dc, gpio.Low)
	b.out(b.cs, gpio.High)
	if b.err == nil {
		b.err = busy.In(pull, gpio.NoEdge)
	}
	return b, b.take()
}

// take returns the pending error and clears it.
func (b *bus) take() error {
	err := b.err
	b.err = nil
	return err
}

func (b *bus) out(p gpio.PinOut, l gpio.Level) {
	if b.err != nil {
		return
	}
	b.err = p.Out(l)
}

func (b *bus) tx(w []byte) {
	if b.err != nil {
		return
	}
	b.err = b.c.Tx(w, nil)
}

func (b *bus) sendCommand(cmd byte) {
	b.out(b.dc, gpio.Low)
	b.out(b.cs, gpio.Low)
	b.tx([]byte{cmd})
	b.out(b.cs, gpio.High)
}

func (b *bus) sendData(data ...byte) {
	b.out(b.dc, gpio.High)
	b.out(b.cs, gpio.Low)
	b.tx(data)
	b.out(b.cs, gpio.High)
}

// pulseReset drives RST low for low and lets the controller settle for settle.
func (b *bus) pulseReset(low, settle time.Duration) {
	b.out(b.rst, gpio.Low)
	time.Sleep(low)
	b.out(b.rst, gpio.High)
	time.Sleep(settle)
}

// waitIdle blocks until BUSY reads idle.
func (b *bus) waitIdle(idle gpio.Level) {
	if b.err != nil {
		return
	}
	deadline := time.Now().Add(busyTimeout)
	for b.busy.Read() != idle {
		if time.Now().After(deadline) {
			b.err = fmt.Errorf("%w after %v", ErrBusyTimeout, busyTimeout)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func pixelisset(c color.Color) bool {
	r, g, b, a := c.RGBA()
	return a >= 0x80 && (r > 0x20 || g > 0x20 || b > 0x20)
}

// pack converts img to the panel's row major, MSB first bit layout.
func pack(img image.Image, bounds image.Rectangle) []byte {
	stride := (bounds.Dx() + 7) / 8
	out := make([]byte, stride*bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if pixelisset(img.At(x, y)) {
				out[y*stride+x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return out
}

// dither scales img to the frame and reduces it to one bit per pixel.
func dither(frame *image1bit.VerticalLSB, img image.Image) {
	bounds := frame.Bounds()
	gray := image.NewGray(bounds)
	if bounds != img.Bounds() {
		scaled := imaging.Fit(img, bounds.Dx(), bounds.Dy(), imaging.Lanczos)
		draw.Draw(gray, bounds, &image.Uniform{color.White}, image.Point{}, draw.Src)
		off := image.Pt((bounds.Dx()-scaled.Bounds().Dx())/2, (bounds.Dy()-scaled.Bounds().Dy())/2)
		draw.Draw(gray, scaled.Bounds().Add(off), scaled, image.Point{}, draw.Src)
	} else {
		draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	}
	if isBilevel(gray) {
		draw.Draw(frame, bounds, gray, image.Point{}, draw.Src)
		return
	}
	draw.Draw(frame, bounds, halfgone.FloydSteinbergDitherer{}.Apply(gray), image.Point{}, draw.Src)
}

// isBilevel reports whether every pixel is already pure black or white.
func isBilevel(g *image.Gray) bool {
	for _, p := range g.Pix {
		if p != 0 && p != 0xff {
			return false
		}
	}
	return true
}
