package control

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// LineReader Tests
// ============================================================================

func readAll(t *testing.T, lr *LineReader) []string {
	t.Helper()

	var lines []string
	for {
		line, err := lr.ReadLine()
		if errors.Is(err, io.EOF) {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
}

func TestLineReader(t *testing.T) {
	t.Run("SplitsOnNewline", func(t *testing.T) {
		lr := NewLineReader(strings.NewReader("b1\na1\nlog\n"), 0)
		assert.Equal(t, []string{"b1", "a1", "log"}, readAll(t, lr))
	})

	t.Run("StripsCarriageReturn", func(t *testing.T) {
		lr := NewLineReader(strings.NewReader("QF1\r\nlog\r\n"), 0)
		assert.Equal(t, []string{"QF1", "log"}, readAll(t, lr))
	})

	t.Run("KeepsEmptyLines", func(t *testing.T) {
		lr := NewLineReader(strings.NewReader("\n\nx\n"), 0)
		assert.Equal(t, []string{"", "", "x"}, readAll(t, lr))
	})

	t.Run("ReturnsUnterminatedFinalLine", func(t *testing.T) {
		lr := NewLineReader(strings.NewReader("a\nlast"), 0)
		assert.Equal(t, []string{"a", "last"}, readAll(t, lr))
	})

	t.Run("EmptyStreamIsEOF", func(t *testing.T) {
		lr := NewLineReader(strings.NewReader(""), 0)
		_, err := lr.ReadLine()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("AcceptsLineAtLimit", func(t *testing.T) {
		line := strings.Repeat("x", 32)
		lr := NewLineReader(strings.NewReader(line+"\n"), 32)
		got, err := lr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, line, got)
	})

	t.Run("RejectsLineOverLimit", func(t *testing.T) {
		lr := NewLineReader(strings.NewReader(strings.Repeat("x", 33)+"\n"), 32)
		_, err := lr.ReadLine()
		assert.ErrorIs(t, err, ErrLineTooLong)
	})

	t.Run("RejectsLongLineSpanningBuffers", func(t *testing.T) {
		lr := NewLineReader(strings.NewReader(strings.Repeat("y", 10*DefaultMaxLineLength)), 0)
		_, err := lr.ReadLine()
		assert.ErrorIs(t, err, ErrLineTooLong)
	})
}

// ============================================================================
// Command Tests
// ============================================================================

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"log", CommandLog},
		{"LOG", CommandAdd},
		{"log ", CommandAdd},
		{"", CommandAdd},
		{"QF12", CommandAdd},
		{".", CommandAdd},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.line))
		})
	}
}

func TestWriteSnapshot(t *testing.T) {
	t.Run("EntriesThenSentinel", func(t *testing.T) {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)

		require.NoError(t, WriteSnapshot(w, []string{"a1", "b1"}))
		assert.Equal(t, "a1\nb1\n.\n", buf.String())
	})

	t.Run("EmptyRegistry", func(t *testing.T) {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)

		require.NoError(t, WriteSnapshot(w, nil))
		assert.Equal(t, ".\n", buf.String())
	})

	t.Run("WriteErrorIsReturned", func(t *testing.T) {
		w := bufio.NewWriterSize(failingWriter{}, 16)
		assert.Error(t, WriteSnapshot(w, []string{"a1"}))
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

// ============================================================================
// Announcement Tests
// ============================================================================

func TestAnnouncement(t *testing.T) {
	t.Run("Format", func(t *testing.T) {
		assert.Equal(t, "!BNE:40123\n", FormatAnnouncement("BNE", 40123))
	})

	t.Run("ParseRoundTrip", func(t *testing.T) {
		id, port, err := parseAnnouncement(FormatAnnouncement("BNE", 40123))
		require.NoError(t, err)
		assert.Equal(t, "BNE", id)
		assert.Equal(t, 40123, port)
	})

	t.Run("ParseRejectsMalformed", func(t *testing.T) {
		for _, line := range []string{"", "BNE:1", "!:1", "!BNE", "!BNE:", "!BNE:x", "!BNE:70000"} {
			_, _, err := parseAnnouncement(line)
			assert.ErrorIs(t, err, errMalformedAnnouncement, "line %q", line)
		}
	})
}

var errMalformedAnnouncement = errors.New("malformed announcement")

// parseAnnouncement reads an announcement back the way a mapper would.
func parseAnnouncement(line string) (string, int, error) {
	line = strings.TrimSuffix(line, "\n")

	rest, ok := strings.CutPrefix(line, AnnouncementPrefix)
	if !ok {
		return "", 0, fmt.Errorf("%w: missing %q prefix", errMalformedAnnouncement, AnnouncementPrefix)
	}

	sep := strings.LastIndexByte(rest, ':')
	if sep <= 0 {
		return "", 0, fmt.Errorf("%w: missing identifier or port", errMalformedAnnouncement)
	}

	port, err := strconv.Atoi(rest[sep+1:])
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w: invalid port %q", errMalformedAnnouncement, rest[sep+1:])
	}

	return rest[:sep], port, nil
}
