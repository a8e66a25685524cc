/*
HACKRFCAP tunes an SDR device to a fixed frequency and streams raw I/Q
samples to a file until interrupted.

The output file is the concatenation, in arrival order, of every received
buffer's valid bytes. There is no header, framing or metadata; the sample
convention is defined entirely by the backend that produced the capture:

	hackrf:    interleaved in-phase and quadrature samples, signed bytes
	rtlsdr:    interleaved in-phase and quadrature samples, unsigned bytes
	rtltcp:    interleaved in-phase and quadrature samples, unsigned bytes
	spyserver: interleaved in-phase and quadrature samples, signed 16-bit
	           little-endian integers

Command-line Flags:

	-sdr="hackrf"

Selects the device backend: hackrf, rtlsdr, rtltcp or spyserver. The hackrf
and rtlsdr backends open local hardware, rtltcp and spyserver connect to a
remote instance given by -server.

	-serial=""

Opens the local device with the given serial number. Empty opens the first
available device. Only the rtlsdr backend supports serial selection.

	-server=""

Sets the rtl_tcp or spyserver address or hostname and port to connect to.
Defaults to 127.0.0.1:1234 for rtltcp and 127.0.0.1:5555 for spyserver.

	-centerfreq=85.5M

Sets the center frequency to receive on. Accepts SI suffixes: 85.5M, 433.92M.

	-samplerate=256k

Sets the sample rate. Accepts SI suffixes.

	-o="output_samples.raw"

Sets the file to write raw samples to. Truncated if it already exists.

	-duration=0

Sets time to capture for, 0 for infinite. Checked once per second by the
liveness loop, so expiry may lag by up to a second.

	-bytes=0

Sets the number of sample bytes to capture before exiting, 0 for infinite.
Accepts binary suffixes: 500k, 1.5g.

	-squelch=0

Sets the minimum mean complex magnitude a buffer must have to be committed
to disk. Buffers below the level are received and counted but not written.
Zero commits every buffer.

	-metrics=""

Sets an address to serve prometheus metrics and pprof endpoints on, for
example 0.0.0.0:6060. Empty disables the listener.

Every flag may also be set with a HACKRFCAP_ prefixed environment variable,
e.g. HACKRFCAP_SDR=rtlsdr. Command-line values take precedence.

The program exits with status 0 on interrupt-driven or limit-driven
shutdown and non-zero on any startup failure.
*/
package main
