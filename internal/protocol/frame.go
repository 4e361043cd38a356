package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"live-quiz-service/internal/domain"
)

const (
	// MaxFrameSize bounds a single inbound frame.
	MaxFrameSize = 64 << 10
	// MaxIdentityLength bounds player names.
	MaxIdentityLength = 64
)

var ErrFrameTooLarge = errors.New("frame too large")

// Reader splits a byte stream into newline-terminated frames.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 4096)}
}

// ReadFrame returns the next non-empty frame without its terminator.
// A final frame cut off by EOF is still returned.
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		frame, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(frame)) > 0 {
			return frame, nil
		}
	}
}

func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		if len(line)+len(chunk) > MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return bytes.TrimRight(line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return bytes.TrimRight(line, "\r\n"), nil
		default:
			return nil, err
		}
	}
}

// ReadHandshake reads the raw identity line a player sends on connect.
func (r *Reader) ReadHandshake() (string, error) {
	frame, err := r.ReadFrame()
	if err != nil {
		return "", err
	}
	return ParseIdentity(frame)
}

// ParseIdentity validates a raw identity frame.
func ParseIdentity(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: not utf-8", domain.ErrInvalidIdentity)
	}
	name := strings.TrimSpace(string(raw))
	if name == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidIdentity)
	}
	if utf8.RuneCountInString(name) > MaxIdentityLength {
		return "", fmt.Errorf("%w: longer than %d characters", domain.ErrInvalidIdentity, MaxIdentityLength)
	}
	return name, nil
}

// WriteFrame writes b followed by the frame terminator.
func WriteFrame(w io.Writer, b []byte) error {
	buf := make([]byte, 0, len(b)+1)
	buf = append(buf, b...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
