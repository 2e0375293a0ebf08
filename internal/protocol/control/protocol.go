// Package control implements the wire format of the control2310 registry
// protocol.
//
// The protocol is line oriented over TCP:
//
//	client: <identifier>\n      register a plane identifier, no reply
//	client: log\n               request a snapshot
//	server: <identifier>\n ...  every registered identifier, sorted
//	server: .\n                 end of snapshot
//
// A separate one-line announcement, "!<identifier>:<port>\n", is sent by the
// registry to the discovery service ("mapper") at startup.
//
// An identifier that is literally "." is indistinguishable from the snapshot
// sentinel. This is a limitation of the protocol and is not rejected.
package control

import (
	"bufio"
	"fmt"
)

const (
	// LogCommand requests a snapshot of the registry.
	LogCommand = "log"

	// Sentinel terminates every snapshot response.
	Sentinel = "."

	// AnnouncementPrefix starts a discovery announcement line.
	AnnouncementPrefix = "!"
)

// Command is the kind of request a line carries.
type Command int

const (
	// CommandAdd registers the line as an identifier.
	CommandAdd Command = iota

	// CommandLog requests a snapshot.
	CommandLog
)

func (c Command) String() string {
	switch c {
	case CommandAdd:
		return "add"
	case CommandLog:
		return "log"
	default:
		return "unknown"
	}
}

// ParseCommand classifies a request line. Only the exact line "log" is a
// snapshot request; every other line, including the empty line, is an add.
func ParseCommand(line string) Command {
	if line == LogCommand {
		return CommandLog
	}
	return CommandAdd
}

// WriteSnapshot writes ids one per line followed by the sentinel line,
// flushing after every line.
func WriteSnapshot(w *bufio.Writer, ids []string) error {
	for _, id := range ids {
		if err := writeLine(w, id); err != nil {
			return err
		}
	}
	return writeLine(w, Sentinel)
}

func writeLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// FormatAnnouncement renders the discovery announcement for id listening
// on port, including the trailing newline.
func FormatAnnouncement(id string, port int) string {
	return fmt.Sprintf("%s%s:%d\n", AnnouncementPrefix, id, port)
}
