package sdr

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/racerxdl/spy2go/spyserver"
	"github.com/racerxdl/spy2go/spytypes"
	"golang.org/x/xerrors"
)

// spyserverDevice streams 16-bit I/Q from a remote spyserver instance.
// spy2go delivers typed sample slices, these are serialized little-endian
// to satisfy the raw byte-buffer contract.
type spyserverDevice struct {
	ss        *spyserver.Spyserver
	cb        Callback
	streaming atomic.Bool
}

func openSpyserver(cfg Config) (dev Device, err error) {
	server := cfg.ServerAddr
	if server == "" {
		server = "127.0.0.1:5555"
	}

	d := &spyserverDevice{ss: spyserver.MakeSpyserverByFullHS(server)}
	d.ss.SetCallback(d)
	d.ss.SetStreamingMode(spyserver.StreamModeIQOnly)

	// Connect panics on dial or handshake failure.
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = xerrors.Errorf("spyserver connect %q: %v", server, r)
		}
	}()
	d.ss.Connect()

	return d, nil
}

// OnData implements spytypes.Callback.
func (d *spyserverDevice) OnData(dType int, data interface{}) {
	if dType != spytypes.SamplesComplex32 || !d.streaming.Load() || d.cb == nil {
		return
	}

	samples := data.([]spytypes.ComplexInt16)
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, samples)

	if err := d.cb(buf.Bytes()); err != nil {
		d.streaming.Store(false)
		d.ss.Stop()
	}
}

func (d *spyserverDevice) SetCenterFreq(hz uint64) error {
	if hz > math.MaxUint32 {
		return xerrors.Errorf("spyserver center frequency out of range: %d", hz)
	}
	if d.ss.SetCenterFrequency(uint32(hz)) == spyserver.InvalidValue {
		return xerrors.Errorf("spyserver rejected center frequency %d", hz)
	}
	return nil
}

func (d *spyserverDevice) SetSampleRate(hz uint32) error {
	if d.ss.SetSampleRate(hz) == spyserver.InvalidValue {
		return xerrors.Errorf("spyserver rejected sample rate %d", hz)
	}
	return nil
}

func (d *spyserverDevice) StartRX(cb Callback) error {
	d.cb = cb
	d.streaming.Store(true)
	d.ss.Start()
	return nil
}

func (d *spyserverDevice) StopRX() error {
	d.streaming.Store(false)
	d.ss.Stop()
	return nil
}

func (d *spyserverDevice) Streaming() bool {
	return d.streaming.Load()
}

func (d *spyserverDevice) SampleFormat() SampleFormat {
	return FormatS16
}

func (d *spyserverDevice) Close() error {
	d.ss.Disconnect()
	return nil
}
