package main

import (
	"encoding/binary"
	"math"

	"github.com/bemasher/hackrfcap/sdr"
)

type MagLUT []float64

// NewUnsignedMagLUT pre-computes squares for unsigned 8-bit samples with the
// most common DC offset for rtl-sdr dongles.
func NewUnsignedMagLUT() (lut MagLUT) {
	lut = make([]float64, 0x100)
	for idx := range lut {
		lut[idx] = 127.4 - float64(idx)
		lut[idx] *= lut[idx]
	}
	return
}

// NewSignedMagLUT pre-computes squares for signed 8-bit samples as delivered
// by the HackRF.
func NewSignedMagLUT() (lut MagLUT) {
	lut = make([]float64, 0x100)
	for idx := range lut {
		lut[idx] = float64(int8(idx))
		lut[idx] *= lut[idx]
	}
	return
}

// Calculates complex magnitude on the given IQ stream writing result to output.
func (lut MagLUT) Execute(input []byte, output []float64) {
	for idx := range output {
		lutIdx := idx << 1
		output[idx] = math.Sqrt(lut[input[lutIdx]] + lut[input[lutIdx+1]])
	}
}

// Mean returns the mean complex magnitude of an 8-bit IQ buffer.
func (lut MagLUT) Mean(input []byte) (mean float64) {
	if len(input) < 2 {
		return 0
	}
	for idx := 0; idx < len(input)-1; idx += 2 {
		mean += math.Sqrt(lut[input[idx]] + lut[input[idx+1]])
	}
	return mean / float64(len(input)>>1)
}

// MeanMagS16 returns the mean complex magnitude of a signed 16-bit
// little-endian IQ buffer, scaled to the 8-bit range so squelch levels are
// comparable across backends.
func MeanMagS16(input []byte) (mean float64) {
	if len(input) < 4 {
		return 0
	}
	for idx := 0; idx < len(input)-3; idx += 4 {
		i := float64(int16(binary.LittleEndian.Uint16(input[idx:]))) / 256
		q := float64(int16(binary.LittleEndian.Uint16(input[idx+2:]))) / 256
		mean += math.Sqrt(i*i + q*q)
	}
	return mean / float64(len(input)>>2)
}

// meanMag dispatches on the backend's sample convention.
func meanMag(format sdr.SampleFormat, lut MagLUT, input []byte) float64 {
	if format == sdr.FormatS16 {
		return MeanMagS16(input)
	}
	return lut.Mean(input)
}

func newMagLUT(format sdr.SampleFormat) MagLUT {
	if format == sdr.FormatS8 {
		return NewSignedMagLUT()
	}
	return NewUnsignedMagLUT()
}
