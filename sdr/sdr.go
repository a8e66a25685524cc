// Package sdr abstracts the radio hardware behind a small device interface
// with interchangeable backends: a local HackRF, a local rtl-sdr dongle, a
// remote rtl_tcp instance or a remote spyserver.
package sdr

import (
	"strings"

	"golang.org/x/xerrors"
)

// SampleFormat describes the wire convention of buffers a backend delivers.
// Capture files carry no header, so consumers must know which of these the
// producing backend used.
type SampleFormat int

const (
	// FormatU8 is interleaved unsigned 8-bit I/Q, offset 127.5 (rtl-sdr, rtl_tcp).
	FormatU8 SampleFormat = iota
	// FormatS8 is interleaved signed 8-bit I/Q (HackRF).
	FormatS8
	// FormatS16 is interleaved signed 16-bit little-endian I/Q (spyserver).
	FormatS16
)

func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "uint8"
	case FormatS8:
		return "int8"
	case FormatS16:
		return "int16le"
	}
	return "unknown"
}

// Callback receives each filled sample buffer on the backend's worker
// context. It must return quickly; a non-nil error tells the backend to
// cancel streaming.
type Callback func(buf []byte) error

// Device is the common surface the session controller sequences. Every
// method is a single delegated call into the backend's library.
type Device interface {
	SetCenterFreq(hz uint64) error
	SetSampleRate(hz uint32) error

	// StartRX begins asynchronous streaming, invoking cb once per filled
	// buffer until StopRX is called or the backend stops on its own.
	StartRX(cb Callback) error
	StopRX() error

	// Streaming reports whether the backend is still delivering buffers.
	Streaming() bool

	SampleFormat() SampleFormat

	Close() error
}

type Config struct {
	// Backend is one of "hackrf", "rtlsdr", "rtltcp" or "spyserver".
	Backend string

	// Serial selects a specific local device, empty for first available.
	Serial string

	// ServerAddr is the host:port of the rtl_tcp or spyserver instance.
	ServerAddr string
}

var (
	ErrUnknownBackend    = xerrors.New("unknown sdr backend")
	ErrNoDevice          = xerrors.New("no device found")
	ErrSerialUnsupported = xerrors.New("backend does not support serial selection")
)

// Init performs process-wide, one-time setup for the given backend. Only the
// hackrf backend has real work to do; the network backends have none.
func Init(backend string) error {
	switch strings.ToLower(backend) {
	case "hackrf":
		return hackrfInit()
	case "rtlsdr", "rtltcp", "spyserver":
		return nil
	}
	return xerrors.Errorf("init %q: %w", backend, ErrUnknownBackend)
}

// Shutdown releases whatever Init acquired. Called once during teardown,
// after the device handle has been closed.
func Shutdown(backend string) error {
	switch strings.ToLower(backend) {
	case "hackrf":
		return hackrfExit()
	case "rtlsdr", "rtltcp", "spyserver":
		return nil
	}
	return xerrors.Errorf("shutdown %q: %w", backend, ErrUnknownBackend)
}

// Open claims a device for the configured backend. The caller owns the
// returned handle and must Close it exactly once.
func Open(cfg Config) (Device, error) {
	switch strings.ToLower(cfg.Backend) {
	case "hackrf":
		return openHackRF(cfg)
	case "rtlsdr":
		return openRTLSDR(cfg)
	case "rtltcp":
		return openRTLTCP(cfg)
	case "spyserver":
		return openSpyserver(cfg)
	}
	return nil, xerrors.Errorf("open %q: %w", cfg.Backend, ErrUnknownBackend)
}
