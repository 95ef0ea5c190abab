package midi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/sysex"
)

// DefaultBaudRate is the MIDI DIN rate. USB-serial bridges often run faster.
const DefaultBaudRate = 31250

const serialReadTimeout = 100 * time.Millisecond

// SerialPort is a MIDI interface reached through a serial device.
type SerialPort struct {
	stream

	port serial.Port

	writeMu sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	errMu   sync.Mutex
	readErr error
}

// ListSerialPorts returns the serial devices present on this machine.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

// OpenSerial opens path at baud (DefaultBaudRate when zero) and starts the
// reader goroutine.
func OpenSerial(path string, baud int, opts ...Option) (*SerialPort, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, describeSerialError(err))
	}

	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}

	p := &SerialPort{
		stream: newStream(path, buildOptions(opts)),
		port:   port,
		done:   make(chan struct{}),
	}

	p.wg.Add(1)
	go p.readLoop()

	logging.Info("Serial MIDI port opened", zap.String("port", path), zap.Int("baud", baud))
	return p, nil
}

func (p *SerialPort) readLoop() {
	defer p.wg.Done()

	var framer sysex.Framer
	buf := make([]byte, 256)
	for {
		select {
		case <-p.done:
			return
		default:
		}

		n, err := p.port.Read(buf)
		if err != nil {
			select {
			case <-p.done:
			default:
				p.errMu.Lock()
				p.readErr = err
				p.errMu.Unlock()
				logging.Error("Serial read failed", zap.String("port", p.name), zap.Error(err))
				p.reg.Close()
			}
			return
		}
		if n == 0 {
			continue
		}
		for _, msg := range framer.Feed(buf[:n]) {
			p.deliver(msg)
		}
	}
}

// Send writes msg to the serial device.
func (p *SerialPort) Send(msg sysex.Message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.observe(logging.DirectionOut, msg)
	if _, err := p.port.Write(msg); err != nil {
		return fmt.Errorf("serial write failed: %w", describeSerialError(err))
	}
	return nil
}

// SendThrottled waits for the throttle then sends.
func (p *SerialPort) SendThrottled(ctx context.Context, msg sysex.Message) error {
	if err := p.throttle.Wait(ctx); err != nil {
		return err
	}
	return p.Send(msg)
}

// Err returns the error that stopped the reader, if any.
func (p *SerialPort) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.readErr
}

// Close stops the reader, closes the device and releases every trigger.
func (p *SerialPort) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.port.Close()
		p.wg.Wait()
		p.reg.Close()
		logging.Info("Serial MIDI port closed", zap.String("port", p.name))
	})
	return err
}

// describeSerialError turns library error codes into something a user can
// act on.
func describeSerialError(err error) error {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return err
	}
	switch portErr.Code() {
	case serial.PortNotFound:
		return fmt.Errorf("port not found (is the interface plugged in?): %w", err)
	case serial.PortBusy:
		return fmt.Errorf("port busy (is another program using it?): %w", err)
	case serial.PermissionDenied:
		return fmt.Errorf("permission denied (check dialout/uucp group membership): %w", err)
	case serial.InvalidSpeed:
		return fmt.Errorf("baud rate not supported by this interface: %w", err)
	}
	return err
}
