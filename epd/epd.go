// Package epd drives monochrome e-paper panels.
//
// Every refresh of an e-paper panel is slow and visible, so UpdateDisplay
// performs exactly one physical refresh per call and nothing else in this
// package refreshes the panel implicitly.
package epd

import (
	"fmt"
	"image"
	"sort"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

type EPD interface {
	// UpdateDisplay scales and dithers img to the panel and refreshes it once.
	UpdateDisplay(img image.Image, partial bool) error
	// Sleep puts the controller into its deep sleep mode. The next
	// UpdateDisplay wakes it up again.
	Sleep() error
	Close() error
	Bounds() image.Rectangle
}

type constructor func(spi.Port, gpio.PinOut, gpio.PinOut, gpio.PinOut, gpio.PinIO) (EPD, error)

var epd_types = map[string]constructor{
	"154_v2":  NewEPD154V2FromSPI,
	"154_m09": NewEPD154M09FromSPI,
}

func SupportedTypes() []string {
	retval := make([]string, 0, len(epd_types))
	for k := range epd_types {
		retval = append(retval, k)
	}
	sort.Strings(retval)
	return retval
}

// IsSupported reports whether epd_type names an SPI panel driver.
func IsSupported(epd_type string) bool {
	_, ok := epd_types[epd_type]
	return ok
}

func NewEPDFromSPI(epd_type string, s spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (EPD, error) {
	v, ok := epd_types[epd_type]
	if !ok {
		return nil, fmt.Errorf("unknown epd type %q", epd_type)
	}
	return v(s, dc, cs, rst, busy)
}

// NewEPD opens spi_bus through the host registry. Closing the returned
// panel also closes the port.
func NewEPD(epd_type string, spi_bus string, dc, cs, rst gpio.PinOut, busy gpio.PinIO) (EPD, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	b, err := spireg.Open(spi_bus)
	if err != nil {
		return nil, err
	}

	epd, err := NewEPDFromSPI(epd_type, b, dc, cs, rst, busy)
	if err != nil {
		b.Close()
		return nil, err
	}
	return &ownedPort{EPD: epd, port: b}, nil
}

type ownedPort struct {
	EPD
	port spi.PortCloser
}

func (o *ownedPort) Clear() error {
	c, ok := o.EPD.(Clearer)
	if !ok {
		return fmt.Errorf("epd: panel cannot clear")
	}
	return c.Clear()
}

func (o *ownedPort) Close() error {
	err := o.EPD.Close()
	if cerr := o.port.Close(); err == nil {
		err = cerr
	}
	return err
}

// Clearer is implemented by panels that can blank themselves.
type Clearer interface {
	Clear() error
}
