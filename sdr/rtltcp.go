package sdr

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bemasher/rtltcp"
	"golang.org/x/xerrors"
)

const rtltcpBlockSize = 16384

// rtltcpDevice adapts rtl_tcp's pull-style sample stream to the callback
// contract by pumping fixed-size blocks on a reader goroutine.
type rtltcpDevice struct {
	sdr       rtltcp.SDR
	streaming atomic.Bool
	wg        sync.WaitGroup
}

func openRTLTCP(cfg Config) (Device, error) {
	server := cfg.ServerAddr
	if server == "" {
		server = "127.0.0.1:1234"
	}

	addr, err := net.ResolveTCPAddr("tcp", server)
	if err != nil {
		return nil, xerrors.Errorf("rtltcp resolve %q: %w", server, err)
	}

	d := &rtltcpDevice{}
	if err := d.sdr.Connect(addr); err != nil {
		return nil, xerrors.Errorf("rtltcp connect %q: %w", server, err)
	}

	// rtl_tcp starts the dongle with automatic gain.
	d.sdr.SetGainMode(false)

	return d, nil
}

func (d *rtltcpDevice) SetCenterFreq(hz uint64) error {
	return d.sdr.SetCenterFreq(uint32(hz))
}

func (d *rtltcpDevice) SetSampleRate(hz uint32) error {
	return d.sdr.SetSampleRate(hz)
}

func (d *rtltcpDevice) StartRX(cb Callback) error {
	d.streaming.Store(true)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.streaming.Store(false)

		block := make([]byte, rtltcpBlockSize)
		for d.streaming.Load() {
			_, err := io.ReadFull(d.sdr, block)
			if err != nil {
				return
			}

			if err := cb(block); err != nil {
				return
			}
		}
	}()

	return nil
}

func (d *rtltcpDevice) StopRX() error {
	d.streaming.Store(false)

	// Unblock a read in flight so the pump goroutine can observe the flag.
	err := d.sdr.SetReadDeadline(time.Now())
	d.wg.Wait()

	if err != nil {
		return err
	}
	return d.sdr.SetReadDeadline(time.Time{})
}

func (d *rtltcpDevice) Streaming() bool {
	return d.streaming.Load()
}

func (d *rtltcpDevice) SampleFormat() SampleFormat {
	return FormatU8
}

func (d *rtltcpDevice) Close() error {
	return d.sdr.Close()
}
