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
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bemasher/rtltcp/si"
	log "github.com/sirupsen/logrus"
)

// Capture defaults match the original compile-time constants.
const (
	defaultCenterFreq = 85.5e6
	defaultSampleRate = 256e3
	defaultOutput     = "output_samples.raw"
)

// Size is a byte count flag accepting suffixed values like "500k" or "1.5g".
type Size int64

func (s Size) String() string {
	return strconv.FormatInt(int64(s), 10)
}

func (s *Size) Set(value string) (err error) {
	var (
		mantissa float64
		exponent string
	)

	mantissa, err = strconv.ParseFloat(value, 64)

	if err == nil {
		*s = Size(mantissa)
		return
	}

	_, err = fmt.Sscanf(value, "%f%s", &mantissa, &exponent)
	if err != nil {
		return
	}

	switch strings.ToLower(exponent) {
	case "k":
		*s = Size(mantissa * (1 << 10))
	case "m":
		*s = Size(mantissa * (1 << 20))
	case "g":
		*s = Size(mantissa * (1 << 30))
	case "t":
		*s = Size(mantissa * (1 << 40))
	default:
		err = fmt.Errorf("invalid exponent: %q", exponent)
	}

	return
}

var (
	backend    = flag.String("sdr", "hackrf", "device backend: hackrf, rtlsdr, rtltcp or spyserver")
	serial     = flag.String("serial", "", "serial number of the device to open, empty for first available")
	serverAddr = flag.String("server", "", "address of the rtl_tcp or spyserver instance")

	outputPath = flag.String("o", defaultOutput, "file to write raw samples to")

	squelch   = flag.Float64("squelch", 0.0, "minimum mean magnitude a buffer must have to commit to disk, 0 commits everything")
	timeLimit = flag.Duration("duration", 0, "time to capture for, 0 for infinite, ex. 1h5m10s")

	metricsAddr = flag.String("metrics", "", "address to serve prometheus metrics and pprof on, empty to disable")

	version = flag.Bool("version", false, "display build date and commit hash")

	centerFreq si.ScientificNotation = defaultCenterFreq
	sampleRate si.ScientificNotation = defaultSampleRate
	byteLimit  Size
)

func RegisterFlags() {
	flag.Var(&centerFreq, "centerfreq", "center frequency to receive on")
	flag.Lookup("centerfreq").DefValue = "85.5M"
	flag.Var(&sampleRate, "samplerate", "sample rate")
	flag.Lookup("samplerate").DefValue = "256k"
	flag.Var(&byteLimit, "bytes", "number of bytes to capture, 0 for infinite")
}

// EnvOverride lets HACKRFCAP_* environment variables override any flag not
// given on the command line.
func EnvOverride() {
	flag.VisitAll(func(f *flag.Flag) {
		envName := "HACKRFCAP_" + strings.ToUpper(f.Name)
		flagValue := os.Getenv(envName)
		if flagValue != "" {
			if err := flag.Set(f.Name, flagValue); err != nil {
				log.Printf(
					"Environment variable %q failed to override flag %q with value %q: %q\n",
					envName, f.Name, flagValue, err,
				)
			} else {
				log.Printf("Environment variable %q overrides flag %q with %q\n", envName, f.Name, flagValue)
			}
		}
	})
}

func sessionConfig() SessionConfig {
	return SessionConfig{
		SDR: sdrConfig(),

		OutputPath: *outputPath,

		CenterFreq: uint64(centerFreq),
		SampleRate: uint32(sampleRate),

		Squelch:   *squelch,
		ByteLimit: int64(byteLimit),
		Duration:  *timeLimit,

		PollInterval: time.Second,
	}
}
