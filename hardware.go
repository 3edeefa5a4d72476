package main

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"

	"github.com/AndreRenaud/eink_frame/config"
	"github.com/AndreRenaud/eink_frame/epd"
)

func findGPIO(ft232h *ftdi.FT232H, name string) (gpio.PinIO, error) {
	headers := ft232h.Header()
	for _, h := range headers {
		if h.Name() == name {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no such gpio %s", name)
}

// pins resolves the four control lines by name.
func pins(lookup func(string) (gpio.PinIO, error), cfg config.DisplayConfig) (dc, cs, rst, busy gpio.PinIO, err error) {
	for _, p := range []struct {
		name string
		pin  *gpio.PinIO
		role string
	}{
		{cfg.DC, &dc, "dc"},
		{cfg.CS, &cs, "cs"},
		{cfg.RST, &rst, "rst"},
		{cfg.Busy, &busy, "busy"},
	} {
		*p.pin, err = lookup(p.name)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("%s: %w", p.role, err)
		}
	}
	return dc, cs, rst, busy, nil
}

// openPanel opens the configured display.
func openPanel(cfg config.DisplayConfig) (epd.EPD, error) {
	if cfg.Type == "preview" {
		w, h := cfg.Width, cfg.Height
		if w == 0 {
			w = 200
		}
		if h == 0 {
			h = 200
		}
		return epd.NewPreview(cfg.Preview, w, h), nil
	}

	if _, err := host.Init(); err != nil {
		return nil, err
	}

	switch cfg.Bus {
	case "ftdi":
		all := ftdi.All()
		if len(all) == 0 {
			return nil, errors.New("found no FTDI device on the USB bus")
		}
		// Use channel A.
		ft232h, ok := all[0].(*ftdi.FT232H)
		if !ok {
			return nil, errors.New("not FTDI device on the USB bus")
		}
		s, err := ft232h.SPI()
		if err != nil {
			return nil, fmt.Errorf("spi: %w", err)
		}
		dc, cs, rst, busy, err := pins(func(name string) (gpio.PinIO, error) {
			return findGPIO(ft232h, name)
		}, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		panel, err := epd.NewEPDFromSPI(cfg.Type, s, dc, cs, rst, busy)
		if err != nil {
			s.Close()
			return nil, err
		}
		return panel, nil
	default:
		dc, cs, rst, busy, err := pins(func(name string) (gpio.PinIO, error) {
			p := gpioreg.ByName(name)
			if p == nil {
				return nil, fmt.Errorf("no such gpio %s", name)
			}
			return p, nil
		}, cfg)
		if err != nil {
			return nil, err
		}
		return epd.NewEPD(cfg.Type, cfg.SPI, dc, cs, rst, busy)
	}
}
