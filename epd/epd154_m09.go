package epd

// Based on https://github.com/GoodDisplay/E-paper-Display-Library-of-GoodDisplay/blob/main/Monochrome_E-paper-Display/1.54inch_JD79653_GDEW0154M09_200x200/Arduino/GDEW0154M09_Arduino.ino

import (
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// JD79653 commands
const (
	m09PanelSetting   byte = 0x00
	m09PowerOff       byte = 0x02
	m09PowerOn        byte = 0x04
	m09DeepSleep      byte = 0x07
	m09OldData        byte = 0x10
	m09DisplayRefresh byte = 0x12
	m09NewData        byte = 0x13
	m09VCOMInterval   byte = 0x50
	m09TconSetting    byte = 0x60
	m09ResolutionSet  byte = 0x61
	m09PowerSaving    byte = 0xE3
	m09DeepSleepCheck byte = 0xA5
)

type epd154m09 struct {
	*bus

	image  *image1bit.VerticalLSB
	asleep bool
}

// NewEPD154M09FromSPI powers the controller on without refreshing, so the
// previous image stays on the panel.
func NewEPD154M09FromSPI(s spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (EPD, error) {
	// BUSY is active low on this controller.
	b, err := newBus(s, 20*physic.MegaHertz, dc, cs, rst, busy, gpio.PullUp)
	if err != nil {
		return nil, err
	}
	e := &epd154m09{
		bus:   b,
		image: image1bit.NewVerticalLSB(image.Rect(0, 0, 200, 200)),
	}
	e.init()
	if err := e.take(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *epd154m09) readBusy() {
	e.waitIdle(gpio.High)
}

func (e *epd154m09) init() {
	e.pulseReset(10*time.Millisecond, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	e.sendCommand(m09PanelSetting)
	e.sendData(0xDf, 0x0e)

	// FITI internal codes
	e.sendCommand(0x4D)
	e.sendData(0x55)
	e.sendCommand(0xaa)
	e.sendData(0x0f)
	e.sendCommand(0xE9)
	e.sendData(0x02)
	e.sendCommand(0xb6)
	e.sendData(0x11)
	e.sendCommand(0xF3)
	e.sendData(0x0a)

	e.sendCommand(m09ResolutionSet)
	e.sendData(byte(e.Bounds().Dx()), 0x00, byte(e.Bounds().Dy()))
	e.sendCommand(m09TconSetting)
	e.sendData(0x00)
	e.sendCommand(m09VCOMInterval)
	e.sendData(0x97)
	e.sendCommand(m09PowerSaving)
	e.sendData(0x00)

	e.sendCommand(m09PowerOn)
	time.Sleep(100 * time.Millisecond)
	e.readBusy()
	e.asleep = false
}

func (e *epd154m09) refresh() {
	e.sendCommand(m09DisplayRefresh)
	// At least 200us before BUSY is valid.
	time.Sleep(10 * time.Millisecond)
	e.readBusy()
}

func (e *epd154m09) writeFrames(old, cur image.Image) {
	e.sendCommand(m09OldData)
	e.sendData(pack(old, e.Bounds())...)
	e.sendCommand(m09NewData)
	e.sendData(pack(cur, e.Bounds())...)
}

// Clear blanks the panel with one refresh.
func (e *epd154m09) Clear() error {
	if e.asleep {
		e.init()
	}
	e.writeFrames(&image.Uniform{color.White}, &image.Uniform{color.White})
	e.refresh()
	return e.take()
}

// UpdateDisplay always does a full refresh; this controller is driven
// without a partial waveform.
func (e *epd154m09) UpdateDisplay(img image.Image, partial bool) error {
	if e.asleep {
		e.init()
	}
	dither(e.image, img)
	e.writeFrames(&image.Uniform{color.White}, e.image)
	e.refresh()
	return e.take()
}

// Sleep powers the controller off. The panel must be re-initialised after
// waking, which UpdateDisplay does on its own.
func (e *epd154m09) Sleep() error {
	if e.asleep {
		return nil
	}
	e.sendCommand(m09PowerOff)
	e.readBusy()
	time.Sleep(time.Second)
	e.sendCommand(m09DeepSleep)
	e.sendData(m09DeepSleepCheck)
	if err := e.take(); err != nil {
		return err
	}
	e.asleep = true
	return nil
}

func (e *epd154m09) Close() error {
	return e.Sleep()
}

func (e *epd154m09) Bounds() image.Rectangle {
	return e.image.Bounds()
}
