package epd

// Based on https://github.com/waveshare/e-Paper/blob/master/RaspberryPi_JetsonNano/c/lib/e-Paper/EPD_1in54_V2.c

import (
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// waveform full refresh
var wf_full_1in54 = []byte{
	0x80, 0x48, 0x40, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x40, 0x48, 0x80, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x80, 0x48, 0x40, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x40, 0x48, 0x80, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0xA, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x8, 0x1, 0x0, 0x8, 0x1, 0x0, 0x2,
	0xA, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0,
	0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x0, 0x0, 0x0,
	0x22, 0x17, 0x41, 0x0, 0x32, 0x20,
}

// SSD1681 commands
const (
	v2DriverOutputControl   byte = 0x01
	v2GateVoltage           byte = 0x03
	v2SourceVoltage         byte = 0x04
	v2DeepSleepMode         byte = 0x10
	v2DataEntryMode         byte = 0x11
	v2SWReset               byte = 0x12
	v2TempSensorControl     byte = 0x18
	v2MasterActivation      byte = 0x20
	v2DisplayUpdateControl2 byte = 0x22
	v2WriteRAMBW            byte = 0x24
	v2WriteRAMRed           byte = 0x26
	v2WriteVCOM             byte = 0x2C
	v2WriteLUT              byte = 0x32
	v2BorderWaveform        byte = 0x3C
	v2EndOption             byte = 0x3F
	v2RAMXStartEnd          byte = 0x44
	v2RAMYStartEnd          byte = 0x45
	v2RAMXCounter           byte = 0x4E
	v2RAMYCounter           byte = 0x4F
)

type epd154v2 struct {
	*bus

	image  *image1bit.VerticalLSB
	asleep bool
}

// NewEPD154V2FromSPI programs the controller but leaves the panel content
// alone, so whatever was displayed before stays visible.
func NewEPD154V2FromSPI(s spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (EPD, error) {
	b, err := newBus(s, 20*physic.MegaHertz, dc, cs, rst, busy, gpio.PullDown)
	if err != nil {
		return nil, err
	}
	e := &epd154v2{
		bus:   b,
		image: image1bit.NewVerticalLSB(image.Rect(0, 0, 200, 200)),
	}
	e.init()
	if err := e.take(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *epd154v2) reset() {
	e.out(e.rst, gpio.High)
	time.Sleep(20 * time.Millisecond)
	e.pulseReset(2*time.Millisecond, 20*time.Millisecond)
}

func (e *epd154v2) readBusy() {
	e.waitIdle(gpio.Low)
}

// turnOnDisplay runs the full refresh sequence.
func (e *epd154v2) turnOnDisplay() {
	e.sendCommand(v2DisplayUpdateControl2)
	e.sendData(0xc7)
	e.sendCommand(v2MasterActivation)
	e.readBusy()
}

func (e *epd154v2) setLut(lut []byte) {
	e.sendCommand(v2WriteLUT)
	e.sendData(lut[0:153]...)
	e.readBusy()

	e.sendCommand(v2EndOption)
	e.sendData(lut[153])
	e.sendCommand(v2GateVoltage)
	e.sendData(lut[154])
	e.sendCommand(v2SourceVoltage)
	e.sendData(lut[155], lut[156], lut[157])
	e.sendCommand(v2WriteVCOM)
	e.sendData(lut[158])
}

func (e *epd154v2) setWindows(xstart, ystart, xend, yend int) {
	e.sendCommand(v2RAMXStartEnd)
	e.sendData(byte(xstart>>3), byte(xend>>3))
	e.sendCommand(v2RAMYStartEnd)
	e.sendData(byte(ystart), byte(ystart>>8), byte(yend), byte(yend>>8))
}

func (e *epd154v2) setCursor(x, y int) {
	e.sendCommand(v2RAMXCounter)
	e.sendData(byte(x))
	e.sendCommand(v2RAMYCounter)
	e.sendData(byte(y), byte(y>>8))
}

func (e *epd154v2) init() {
	e.reset()
	e.readBusy()
	e.sendCommand(v2SWReset)
	e.readBusy()

	h := e.Bounds().Dy()
	e.sendCommand(v2DriverOutputControl)
	e.sendData(byte(h-1), byte((h-1)>>8), 0x01)

	e.sendCommand(v2DataEntryMode)
	e.sendData(0x01)
	e.setWindows(0, h-1, e.Bounds().Dx()-1, 0)

	e.sendCommand(v2BorderWaveform)
	e.sendData(0x01)
	e.sendCommand(v2TempSensorControl)
	e.sendData(0x80)

	// Load temperature and waveform setting.
	e.sendCommand(v2DisplayUpdateControl2)
	e.sendData(0xB1)
	e.sendCommand(v2MasterActivation)

	e.setCursor(0, h-1)
	e.readBusy()

	e.setLut(wf_full_1in54)
	e.asleep = false
}

// Clear blanks both RAM planes and refreshes the panel.
func (e *epd154v2) Clear() error {
	if e.asleep {
		e.init()
	}
	blank := pack(&image.Uniform{color.White}, e.Bounds())
	e.sendCommand(v2WriteRAMBW)
	e.sendData(blank...)
	e.sendCommand(v2WriteRAMRed)
	e.sendData(blank...)
	e.turnOnDisplay()
	return e.take()
}

// UpdateDisplay always does a full refresh; partial updates are not
// supported and the flag is ignored.
func (e *epd154v2) UpdateDisplay(img image.Image, partial bool) error {
	if e.asleep {
		e.init()
	}

	dither(e.image, img)

	e.sendCommand(v2WriteRAMBW)
	e.sendData(pack(e.image, e.Bounds())...)
	e.turnOnDisplay()
	return e.take()
}

func (e *epd154v2) Sleep() error {
	if e.asleep {
		return nil
	}
	e.sendCommand(v2DeepSleepMode)
	e.sendData(0x01)
	time.Sleep(100 * time.Millisecond)
	if err := e.take(); err != nil {
		return err
	}
	e.asleep = true
	return nil
}

func (e *epd154v2) Close() error {
	return e.Sleep()
}

func (e *epd154v2) Bounds() image.Rectangle {
	return e.image.Bounds()
}
