package sdr

import (
	"sync"
	"sync/atomic"

	rtl "github.com/jpoirier/gortlsdr"
	"golang.org/x/xerrors"
)

const (
	rtlBufferCount = 12
	rtlBufferLen   = 16 * 16384
)

type rtlsdrDevice struct {
	dev       *rtl.Context
	streaming atomic.Bool
	wg        sync.WaitGroup
}

func openRTLSDR(cfg Config) (Device, error) {
	if rtl.GetDeviceCount() == 0 {
		return nil, xerrors.Errorf("rtlsdr: %w", ErrNoDevice)
	}

	index := 0
	if cfg.Serial != "" {
		var err error
		index, err = rtl.GetIndexBySerial(cfg.Serial)
		if err != nil {
			return nil, xerrors.Errorf("rtlsdr serial %q: %w", cfg.Serial, err)
		}
	}

	dev, err := rtl.Open(index)
	if err != nil {
		return nil, xerrors.Errorf("rtlsdr open: %w", err)
	}

	// Let the tuner pick its own gain and clear any stale samples buffered
	// by the kernel driver before streaming starts.
	dev.SetTunerGainMode(false)
	if err := dev.ResetBuffer(); err != nil {
		dev.Close()
		return nil, xerrors.Errorf("rtlsdr reset buffer: %w", err)
	}

	return &rtlsdrDevice{dev: dev}, nil
}

func (r *rtlsdrDevice) SetCenterFreq(hz uint64) error {
	return r.dev.SetCenterFreq(int(hz))
}

func (r *rtlsdrDevice) SetSampleRate(hz uint32) error {
	return r.dev.SetSampleRate(int(hz))
}

// StartRX runs the blocking ReadAsync loop on its own goroutine. The loop
// returns after CancelAsync or on a USB error, either way the streaming
// flag drops so the caller's liveness poll notices.
func (r *rtlsdrDevice) StartRX(cb Callback) error {
	r.streaming.Store(true)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.streaming.Store(false)

		r.dev.ReadAsync(func(buf []byte) {
			if !r.streaming.Load() {
				return
			}
			if err := cb(buf); err != nil {
				r.dev.CancelAsync()
			}
		}, nil, rtlBufferCount, rtlBufferLen)
	}()

	return nil
}

func (r *rtlsdrDevice) StopRX() error {
	r.streaming.Store(false)
	err := r.dev.CancelAsync()
	r.wg.Wait()
	return err
}

func (r *rtlsdrDevice) Streaming() bool {
	return r.streaming.Load()
}

func (r *rtlsdrDevice) SampleFormat() SampleFormat {
	return FormatU8
}

func (r *rtlsdrDevice) Close() error {
	return r.dev.Close()
}
