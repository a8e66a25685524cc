package sdr

import (
	"sync/atomic"

	"github.com/samuel/go-hackrf/hackrf"
	"golang.org/x/xerrors"
)

// Moderate front-end gain, conservative enough to avoid clipping on strong
// broadcast signals.
const hackrfLNAGain = 16

type hackrfDevice struct {
	dev       *hackrf.Device
	streaming atomic.Bool
}

func hackrfInit() error {
	return hackrf.Init()
}

func hackrfExit() error {
	return hackrf.Exit()
}

func openHackRF(cfg Config) (Device, error) {
	// The binding only exposes first-available open.
	if cfg.Serial != "" {
		return nil, xerrors.Errorf("hackrf serial %q: %w", cfg.Serial, ErrSerialUnsupported)
	}

	dev, err := hackrf.Open()
	if err != nil {
		return nil, xerrors.Errorf("hackrf open: %w", err)
	}

	if err := dev.SetLNAGain(hackrfLNAGain); err != nil {
		dev.Close()
		return nil, xerrors.Errorf("hackrf lna gain: %w", err)
	}

	return &hackrfDevice{dev: dev}, nil
}

func (h *hackrfDevice) SetCenterFreq(hz uint64) error {
	return h.dev.SetFreq(hz)
}

func (h *hackrfDevice) SetSampleRate(hz uint32) error {
	if err := h.dev.SetSampleRateManual(int(hz)*2, 2); err != nil {
		return err
	}
	return h.dev.SetBasebandFilterBandwidth(int(hz))
}

func (h *hackrfDevice) StartRX(cb Callback) error {
	err := h.dev.StartRX(func(buf []byte) error {
		if err := cb(buf); err != nil {
			h.streaming.Store(false)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.streaming.Store(true)
	return nil
}

func (h *hackrfDevice) StopRX() error {
	h.streaming.Store(false)
	return h.dev.StopRX()
}

func (h *hackrfDevice) Streaming() bool {
	return h.streaming.Load()
}

func (h *hackrfDevice) SampleFormat() SampleFormat {
	return FormatS8
}

func (h *hackrfDevice) Close() error {
	return h.dev.Close()
}
