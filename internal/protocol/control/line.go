package control

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxLineLength bounds a single request line, excluding its terminator.
const DefaultMaxLineLength = 4096

// ErrLineTooLong is returned by ReadLine when a line exceeds the reader's
// maximum length. The connection cannot be resynchronised after this error.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// LineReader reads newline-terminated request lines from a connection.
//
// The trailing "\n" and an optional "\r" before it are stripped. A final
// unterminated line before end of stream is returned as a normal line; the
// next call then returns io.EOF.
//
// LineReader is not safe for concurrent use. Each connection owns one.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r. A maxLength <= 0 selects DefaultMaxLineLength.
func NewLineReader(r io.Reader, maxLength int) *LineReader {
	if maxLength <= 0 {
		maxLength = DefaultMaxLineLength
	}

	size := maxLength + 2
	if size < 16 {
		size = 16
	}

	return &LineReader{
		r:   bufio.NewReaderSize(r, size),
		max: maxLength,
	}
}

// ReadLine returns the next line without its terminator.
//
// Returns:
//   - io.EOF when the stream ended with no pending bytes
//   - ErrLineTooLong when the line is longer than the configured maximum
//   - any underlying read error
func (lr *LineReader) ReadLine() (string, error) {
	var line []byte

	for {
		chunk, err := lr.r.ReadSlice('\n')
		line = append(line, chunk...)

		if len(trimEOL(line)) > lr.max {
			return "", ErrLineTooLong
		}

		switch {
		case err == nil:
			return string(trimEOL(line)), nil

		case errors.Is(err, bufio.ErrBufferFull):
			continue

		case errors.Is(err, io.EOF):
			if len(line) > 0 {
				return string(trimEOL(line)), nil
			}
			return "", io.EOF

		default:
			return "", err
		}
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
