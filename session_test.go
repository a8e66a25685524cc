package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bemasher/hackrfcap/sdr"
)

type fakeDevice struct {
	cb        sdr.Callback
	streaming atomic.Bool
	format    sdr.SampleFormat

	freqErr  error
	rateErr  error
	startErr error
	stopErr  error
	closeErr error

	freq uint64
	rate uint32

	startCalls int32
	stopCalls  int32
	closeCalls int32
}

func (f *fakeDevice) SetCenterFreq(hz uint64) error {
	f.freq = hz
	return f.freqErr
}

func (f *fakeDevice) SetSampleRate(hz uint32) error {
	f.rate = hz
	return f.rateErr
}

func (f *fakeDevice) StartRX(cb sdr.Callback) error {
	atomic.AddInt32(&f.startCalls, 1)
	if f.startErr != nil {
		return f.startErr
	}
	f.cb = cb
	f.streaming.Store(true)
	return nil
}

func (f *fakeDevice) StopRX() error {
	atomic.AddInt32(&f.stopCalls, 1)
	f.streaming.Store(false)
	return f.stopErr
}

func (f *fakeDevice) Streaming() bool { return f.streaming.Load() }

func (f *fakeDevice) SampleFormat() sdr.SampleFormat { return f.format }

func (f *fakeDevice) Close() error {
	atomic.AddInt32(&f.closeCalls, 1)
	return f.closeErr
}

// deliver invokes the registered receive callback the way a device worker
// would, once per filled buffer.
func (f *fakeDevice) deliver(t *testing.T, buf []byte) {
	t.Helper()
	if f.cb == nil {
		t.Fatal("deliver called before StartRX")
	}
	if err := f.cb(buf); err != nil {
		t.Fatalf("callback returned error: %v", err)
	}
}

type countingSink struct {
	buf        bytes.Buffer
	closeCalls int32
}

func (c *countingSink) Write(p []byte) (int, error) { return c.buf.Write(p) }

func (c *countingSink) Close() error {
	atomic.AddInt32(&c.closeCalls, 1)
	return nil
}

// swapDevice points the session's sdr indirection at the fake for the
// duration of a test.
func swapDevice(t *testing.T, dev *fakeDevice, initErr error, shutdownCalls *int32) {
	t.Helper()

	origInit, origShutdown, origOpen := initSubsystem, shutdownSubsystem, openDevice
	t.Cleanup(func() {
		initSubsystem, shutdownSubsystem, openDevice = origInit, origShutdown, origOpen
	})

	initSubsystem = func(string) error { return initErr }
	shutdownSubsystem = func(string) error {
		if shutdownCalls != nil {
			atomic.AddInt32(shutdownCalls, 1)
		}
		return nil
	}
	openDevice = func(sdr.Config) (sdr.Device, error) { return dev, nil }
}

func newTestSession(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()

	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(t.TempDir(), "capture.raw")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}

	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

func TestCallbackConcatenation(t *testing.T) {
	dev := &fakeDevice{}
	swapDevice(t, dev, nil, nil)

	out := filepath.Join(t.TempDir(), "capture.raw")
	s := newTestSession(t, SessionConfig{OutputPath: out})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var want []byte
	for _, n := range []int{1, 16, 4096, 3, 255} {
		buf := bytes.Repeat([]byte{byte(n)}, n)
		dev.deliver(t, buf)
		want = append(want, buf...)
	}

	s.Interrupt()
	s.Close()

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("capture mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestNoWritesAfterInterrupt(t *testing.T) {
	dev := &fakeDevice{}
	swapDevice(t, dev, nil, nil)

	out := filepath.Join(t.TempDir(), "capture.raw")
	s := newTestSession(t, SessionConfig{OutputPath: out})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	dev.deliver(t, []byte{1, 2, 3, 4})
	s.Interrupt()

	// Drain buffers still in flight must produce no output.
	dev.deliver(t, []byte{5, 6, 7, 8})
	dev.deliver(t, []byte{9, 10})

	s.Close()

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	if want := []byte{1, 2, 3, 4}; !bytes.Equal(got, want) {
		t.Fatalf("capture mismatch: got %v, want %v", got, want)
	}
}

func TestInterruptIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	swapDevice(t, dev, nil, nil)

	s := newTestSession(t, SessionConfig{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Repeated delivery must be harmless.
	s.sigCh <- os.Interrupt
	s.sigCh <- os.Interrupt
	s.Interrupt()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after repeated interrupts")
	}

	if !s.exit.Load() {
		t.Fatal("exit flag not set")
	}
}

func TestWaitBoundedByPollInterval(t *testing.T) {
	for _, tc := range []struct {
		name string
		stop func(*Session, *fakeDevice)
	}{
		{"exit flag", func(s *Session, _ *fakeDevice) { s.Interrupt() }},
		{"device stops", func(_ *Session, dev *fakeDevice) { dev.streaming.Store(false) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev := &fakeDevice{}
			swapDevice(t, dev, nil, nil)

			poll := 100 * time.Millisecond
			s := newTestSession(t, SessionConfig{PollInterval: poll})
			if err := s.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}

			tc.stop(s, dev)

			start := time.Now()
			s.Wait()
			if elapsed := time.Since(start); elapsed > poll+poll/2 {
				t.Fatalf("Wait took %v, want at most %v", elapsed, poll+poll/2)
			}
		})
	}
}

func TestStartupFailures(t *testing.T) {
	errBoom := os.ErrPermission

	for _, tc := range []struct {
		step  string
		setup func(*fakeDevice) (initErr error)
	}{
		{stepInit, func(*fakeDevice) error { return errBoom }},
		{stepCenterFreq, func(dev *fakeDevice) error { dev.freqErr = errBoom; return nil }},
		{stepSampleRate, func(dev *fakeDevice) error { dev.rateErr = errBoom; return nil }},
		{stepStartRX, func(dev *fakeDevice) error { dev.startErr = errBoom; return nil }},
	} {
		t.Run(tc.step, func(t *testing.T) {
			dev := &fakeDevice{}
			initErr := tc.setup(dev)
			swapDevice(t, dev, initErr, nil)

			s := newTestSession(t, SessionConfig{})
			err := s.Start()
			if err == nil {
				t.Fatal("Start succeeded, want failure")
			}
			if !strings.Contains(err.Error(), tc.step) {
				t.Fatalf("error %q does not name step %q", err, tc.step)
			}
			if dev.Streaming() {
				t.Fatal("device streaming after failed startup")
			}
			if dev.cb != nil {
				t.Fatal("callback registered after failed startup")
			}
		})
	}
}

func TestStartupFailureDeviceOpen(t *testing.T) {
	origInit, origShutdown, origOpen := initSubsystem, shutdownSubsystem, openDevice
	t.Cleanup(func() {
		initSubsystem, shutdownSubsystem, openDevice = origInit, origShutdown, origOpen
	})

	initSubsystem = func(string) error { return nil }
	shutdownSubsystem = func(string) error { return nil }
	openDevice = func(sdr.Config) (sdr.Device, error) { return nil, sdr.ErrNoDevice }

	s := newTestSession(t, SessionConfig{})
	err := s.Start()
	if err == nil {
		t.Fatal("Start succeeded, want failure")
	}
	if !strings.Contains(err.Error(), stepOpen) {
		t.Fatalf("error %q does not name step %q", err, stepOpen)
	}
}

func TestStartupFailureSinkOpen(t *testing.T) {
	_, err := NewSession(SessionConfig{
		OutputPath: filepath.Join(t.TempDir(), "missing", "capture.raw"),
	})
	if err == nil {
		t.Fatal("NewSession succeeded, want failure")
	}
	if !strings.Contains(err.Error(), stepSinkOpen) {
		t.Fatalf("error %q does not name step %q", err, stepSinkOpen)
	}
}

func TestTeardownBestEffort(t *testing.T) {
	dev := &fakeDevice{
		stopErr:  os.ErrInvalid,
		closeErr: os.ErrInvalid,
	}
	var shutdownCalls int32
	swapDevice(t, dev, nil, &shutdownCalls)

	s := newTestSession(t, SessionConfig{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sink := &countingSink{}
	s.sink = sink

	s.Close()
	s.Close() // must be a no-op

	if got := atomic.LoadInt32(&dev.stopCalls); got != 1 {
		t.Errorf("StopRX calls: got %d, want 1", got)
	}
	if got := atomic.LoadInt32(&dev.closeCalls); got != 1 {
		t.Errorf("Close calls: got %d, want 1", got)
	}
	if got := atomic.LoadInt32(&shutdownCalls); got != 1 {
		t.Errorf("subsystem shutdown calls: got %d, want 1", got)
	}
	if got := atomic.LoadInt32(&sink.closeCalls); got != 1 {
		t.Errorf("sink close calls: got %d, want 1", got)
	}
}

func TestByteLimit(t *testing.T) {
	dev := &fakeDevice{}
	swapDevice(t, dev, nil, nil)

	out := filepath.Join(t.TempDir(), "capture.raw")
	s := newTestSession(t, SessionConfig{OutputPath: out, ByteLimit: 8})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	dev.deliver(t, []byte{1, 2, 3, 4, 5})
	dev.deliver(t, []byte{6, 7, 8, 9})

	if !s.exit.Load() {
		t.Fatal("exit flag not set after byte limit")
	}

	// Past the limit the callback is a drain no-op.
	dev.deliver(t, []byte{10, 11, 12})
	s.Close()

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("capture size: got %d bytes, want 9", len(got))
	}
}

func TestSquelchDropsQuietBuffers(t *testing.T) {
	dev := &fakeDevice{format: sdr.FormatU8}
	swapDevice(t, dev, nil, nil)

	out := filepath.Join(t.TempDir(), "capture.raw")
	s := newTestSession(t, SessionConfig{OutputPath: out, Squelch: 50})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// DC-only buffer sits well below the squelch level.
	quiet := bytes.Repeat([]byte{127}, 512)
	// Full-scale alternating buffer is well above it.
	loud := bytes.Repeat([]byte{0, 255}, 256)

	dev.deliver(t, quiet)
	dev.deliver(t, loud)

	s.Interrupt()
	s.Close()

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	if !bytes.Equal(got, loud) {
		t.Fatalf("capture mismatch: got %d bytes, want the %d loud bytes only", len(got), len(loud))
	}
}
