package serial

import (
	"fmt"
	"io"

	goserial "go.bug.st/serial"
)

// OpenPort opens the physical card-reader device in 8N1 mode at the given
// baud rate. The returned stream is both the byte source for the framer and
// the sink the device responder writes status lines to.
func OpenPort(name string, baudRate int) (io.ReadWriteCloser, error) {
	mode := &goserial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}

	port, err := goserial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}
