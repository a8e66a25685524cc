// HACKRFCAP - An interrupt-driven raw I/Q capture tool for SDR devices.
// Copyright (C) 2019 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bemasher/hackrfcap/sdr"
)

const defaultPollInterval = time.Second

// Step names reported when startup fails.
const (
	stepSinkOpen   = "opening output file"
	stepInit       = "initializing device subsystem"
	stepOpen       = "opening device"
	stepCenterFreq = "setting center frequency"
	stepSampleRate = "setting sample rate"
	stepStartRX    = "starting receive stream"
)

// Indirection over package sdr so tests can substitute a device double.
var (
	initSubsystem     = sdr.Init
	shutdownSubsystem = sdr.Shutdown
	openDevice        = sdr.Open
)

type SessionConfig struct {
	SDR        sdr.Config
	OutputPath string

	CenterFreq uint64
	SampleRate uint32

	// Squelch drops buffers whose mean magnitude is below this level,
	// zero commits every buffer.
	Squelch float64

	// ByteLimit and Duration bound the capture, zero for unbounded.
	ByteLimit int64
	Duration  time.Duration

	PollInterval time.Duration
}

// Session owns the output sink and the device handle, and bridges the
// device worker's receive callback to the sink. The exit flag is the only
// state shared between the signal goroutine, the receive callback and the
// liveness loop.
type Session struct {
	cfg SessionConfig

	dev  sdr.Device
	sink io.WriteCloser

	exit    atomic.Bool
	written atomic.Int64

	format sdr.SampleFormat
	lut    MagLUT

	subsystemUp bool
	sigCh       chan os.Signal
	closed      bool
}

// NewSession opens the output sink. The sink is acquired before any device
// resource so the receive callback always finds it set once streaming starts.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}

	sink, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, errors.Wrap(err, stepSinkOpen)
	}

	return &Session{cfg: cfg, sink: sink}, nil
}

// Start walks the acquisition sequence: subsystem init, device open, tune,
// sample rate, signal handlers, receive streaming. Any failure aborts with
// an error naming the failed step; resources already acquired are released
// by Close.
func (s *Session) Start() error {
	if err := initSubsystem(s.cfg.SDR.Backend); err != nil {
		return errors.Wrap(err, stepInit)
	}
	s.subsystemUp = true

	dev, err := openDevice(s.cfg.SDR)
	if err != nil {
		return errors.Wrap(err, stepOpen)
	}
	s.dev = dev

	if err := dev.SetCenterFreq(s.cfg.CenterFreq); err != nil {
		return errors.Wrap(err, stepCenterFreq)
	}

	if err := dev.SetSampleRate(s.cfg.SampleRate); err != nil {
		return errors.Wrap(err, stepSampleRate)
	}

	s.format = dev.SampleFormat()
	if s.cfg.Squelch > 0 {
		s.lut = newMagLUT(s.format)
	}

	s.notifySignals()

	if err := dev.StartRX(s.rx); err != nil {
		return errors.Wrap(err, stepStartRX)
	}

	log.WithFields(log.Fields{
		"backend":    s.cfg.SDR.Backend,
		"centerfreq": s.cfg.CenterFreq,
		"samplerate": s.cfg.SampleRate,
		"format":     s.format.String(),
		"output":     s.cfg.OutputPath,
	}).Info("streaming, stop with ctrl-c")

	return nil
}

// rx runs on the device subsystem's worker context once per filled buffer.
// Once the exit flag is set it becomes a no-op so in-flight buffers drain
// without producing output past the stop request.
func (s *Session) rx(buf []byte) error {
	if s.exit.Load() || s.sink == nil {
		return nil
	}

	rxBuffers.Inc()

	if s.cfg.Squelch > 0 && meanMag(s.format, s.lut, buf) < s.cfg.Squelch {
		rxSquelched.Inc()
		return nil
	}

	n, err := s.sink.Write(buf)
	if err != nil {
		rxWriteErrors.Inc()
		log.WithError(err).Warn("writing sample buffer")
		return nil
	}

	rxBytes.Add(float64(n))
	if total := s.written.Add(int64(n)); s.cfg.ByteLimit > 0 && total >= s.cfg.ByteLimit {
		s.exit.Store(true)
	}

	return nil
}

// Interrupt requests an orderly shutdown. Safe to call from any goroutine,
// idempotent under repeated delivery.
func (s *Session) Interrupt() {
	s.exit.Store(true)
}

func (s *Session) notifySignals() {
	s.sigCh = make(chan os.Signal, 1)
	signal.Notify(s.sigCh, os.Interrupt, os.Kill, syscall.SIGTERM)

	go func() {
		for sig := range s.sigCh {
			log.WithField("signal", sig).Info("caught signal")
			s.exit.Store(true)
		}
	}()
}

// Wait blocks until the exit flag is set or the device stops streaming on
// its own. The coarse poll keeps CPU usage negligible at the cost of up to
// one interval of shutdown latency.
func (s *Session) Wait() {
	var deadline time.Time
	if s.cfg.Duration > 0 {
		deadline = time.Now().Add(s.cfg.Duration)
	}

	for !s.exit.Load() && s.dev.Streaming() {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			log.Info("time limit reached")
			s.exit.Store(true)
			return
		}
		time.Sleep(s.cfg.PollInterval)
	}
}

// Close tears the session down in reverse order of acquisition: stop
// streaming, close the device, shut down the subsystem, close the sink.
// Teardown failures are logged and cleanup continues. Runs at most once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.dev != nil {
		if err := s.dev.StopRX(); err != nil {
			log.WithError(err).Warn("stopping receive stream")
		}
		if err := s.dev.Close(); err != nil {
			log.WithError(err).Warn("closing device")
		}
	}

	if s.subsystemUp {
		if err := shutdownSubsystem(s.cfg.SDR.Backend); err != nil {
			log.WithError(err).Warn("shutting down device subsystem")
		}
	}

	if s.sigCh != nil {
		signal.Stop(s.sigCh)
		close(s.sigCh)
	}

	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			log.WithError(err).Warn("closing output file")
		}
	}

	log.WithField("bytes", s.written.Load()).Info("capture closed")
}
