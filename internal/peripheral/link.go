package peripheral

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// ErrNoData is returned by ReadLine when the peripheral had nothing pending
// within the read timeout. It is not a transport failure.
var ErrNoData = errors.New("peripheral: no data pending")

var errNotOpen = errors.New("peripheral: link not open")

// Port is one open serial channel. *serial.Port satisfies it; tests inject
// scripted fakes.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens the physical channel for an address. The default opener talks
// real serial hardware; tests substitute their own.
type Opener func(address string, baudRate int, readTimeout time.Duration) (Port, error)

// OpenSerial is the production Opener.
func OpenSerial(address string, baudRate int, readTimeout time.Duration) (Port, error) {
	port, err := serial.Open(address, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", address, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", address, err)
	}
	return port, nil
}

// Link is a single connection to one assigned peripheral address. It tracks
// connection state and buffers partial lines between reads; it does not retry.
// Retry and reconnection policy live in Manager.
type Link struct {
	role        string
	address     string
	baudRate    int
	readTimeout time.Duration
	settleDelay time.Duration
	open        Opener

	port    Port
	pending []byte
}

// NewLink builds a closed link for role at address.
func NewLink(role, address string, baudRate int, readTimeout, settleDelay time.Duration, open Opener) *Link {
	return &Link{
		role:        role,
		address:     address,
		baudRate:    baudRate,
		readTimeout: readTimeout,
		settleDelay: settleDelay,
		open:        open,
	}
}

// Address returns the assigned device address.
func (l *Link) Address() string { return l.address }

// Connected reports whether the channel is open.
func (l *Link) Connected() bool { return l.port != nil }

// Connect (re)opens the channel. Any previous channel is closed first. The
// peripheral firmware resets on open and needs the settle delay before it
// accepts traffic.
func (l *Link) Connect() error {
	l.Close()
	port, err := l.open(l.address, l.baudRate, l.readTimeout)
	if err != nil {
		return err
	}
	l.port = port
	time.Sleep(l.settleDelay)
	return nil
}

// Close releases the channel. Safe to call on a closed link.
func (l *Link) Close() {
	if l.port != nil {
		_ = l.port.Close()
		l.port = nil
	}
	l.pending = l.pending[:0]
}

// Write sends raw bytes. A transport error leaves the link closed so the
// caller can reconnect.
func (l *Link) Write(p []byte) error {
	if l.port == nil {
		return errNotOpen
	}
	if _, err := l.port.Write(p); err != nil {
		l.Close()
		return fmt.Errorf("write to %s (%s): %w", l.role, l.address, err)
	}
	return nil
}

// ReadLine returns one newline-terminated message with the terminator
// stripped. ErrNoData means the device was quiet this cycle; any other error
// is a transport failure and leaves the link closed.
func (l *Link) ReadLine() (string, error) {
	if l.port == nil {
		return "", errNotOpen
	}
	for {
		if line, ok := l.popLine(); ok {
			return line, nil
		}
		buf := make([]byte, 256)
		n, err := l.port.Read(buf)
		if err != nil {
			l.Close()
			return "", fmt.Errorf("read from %s (%s): %w", l.role, l.address, err)
		}
		if n == 0 {
			// read timeout elapsed with nothing buffered
			return "", ErrNoData
		}
		l.pending = append(l.pending, buf[:n]...)
	}
}

func (l *Link) popLine() (string, bool) {
	for i, b := range l.pending {
		if b == '\n' {
			line := string(l.pending[:i])
			l.pending = l.pending[i+1:]
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return line, true
		}
	}
	return "", false
}
