// Package link is the line-oriented serial transport to the arm
// controller: one text command per line out, one status line per line in.
package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.bug.st/serial"

	"github.com/gwillem/sppark/pkg/motion"
)

const (
	DefaultBaudRate    = 115200
	DefaultOpenTimeout = 5 * time.Second

	lineBuffer = 64
)

// Options configure Open.
type Options struct {
	Port     string
	BaudRate int
	// OpenTimeout bounds the retries while the port is busy.
	OpenTimeout time.Duration
	Logger      *slog.Logger
}

// Serial is a line link over a byte stream. It implements motion.Link.
type Serial struct {
	rwc    io.ReadWriteCloser
	logger *slog.Logger

	writeMu sync.Mutex
	lines   chan string
	done    chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
	once   sync.Once
}

// Open opens a serial port, retrying with exponential backoff while it
// is busy. A port that does not exist or cannot be accessed fails at
// once.
func Open(ctx context.Context, opts Options) (*Serial, error) {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = DefaultOpenTimeout
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = opts.OpenTimeout

	var port serial.Port
	err := backoff.Retry(func() error {
		p, err := serial.Open(opts.Port, &serial.Mode{BaudRate: opts.BaudRate})
		if err != nil {
			var pe *serial.PortError
			if errors.As(err, &pe) {
				switch pe.Code() {
				case serial.PortNotFound, serial.PermissionDenied, serial.InvalidSerialPort:
					return backoff.Permanent(err)
				}
			}
			return err
		}
		port = p
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Port, err)
	}
	return New(port, opts.Logger), nil
}

// New wraps an open byte stream and starts reading lines from it.
func New(rwc io.ReadWriteCloser, logger *slog.Logger) *Serial {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Serial{
		rwc:    rwc,
		logger: logger,
		lines:  make(chan string, lineBuffer),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// SendLine writes line followed by a newline.
func (s *Serial) SendLine(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return motion.ErrLinkClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := io.WriteString(s.rwc, line+"\n"); err != nil {
		return err
	}
	s.logger.Debug("sent", "line", line)
	return nil
}

// Lines delivers trimmed, non-empty inbound lines. It is closed when the
// link ends. Lines are dropped if the reader falls behind.
func (s *Serial) Lines() <-chan string { return s.lines }

// Done is closed when the link has ended.
func (s *Serial) Done() <-chan struct{} { return s.done }

// Err reports why the link ended, or nil after a clean close.
func (s *Serial) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the stream and waits for the reader to stop.
func (s *Serial) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.rwc.Close()
	})
	<-s.done
	return err
}

func (s *Serial) readLoop() {
	defer close(s.done)
	defer close(s.lines)

	scanner := bufio.NewScanner(s.rwc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		default:
			s.logger.Debug("inbound line dropped", "line", line)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := scanner.Err(); err != nil && !s.closed {
		s.err = err
	}
	s.closed = true
}
