package serial

import (
	"log/slog"
)

// LogSink is a dummy peer that logs outgoing bytes as text. Handy for test
// ROMs that report results over the link port.
type LogSink struct {
	logger *slog.Logger

	// Optional line buffer for readable output
	line []byte

	// Bytes holds everything transmitted, for programmatic inspection.
	Bytes []uint8
}

// NewLogSink creates a new logging serial peer.
func NewLogSink() *LogSink {
	return &LogSink{logger: slog.Default()}
}

// Exchange implements Device. Nothing is ever shifted back in.
func (s *LogSink) Exchange(tx uint8) uint8 {
	s.Bytes = append(s.Bytes, tx)

	if tx == '\n' {
		s.flushLine()
	} else if tx >= 0x20 && tx < 0x7F {
		s.line = append(s.line, tx)
	} else {
		s.flushLine()
	}

	return 0xFF
}

func (s *LogSink) flushLine() {
	if len(s.line) == 0 {
		return
	}
	s.logger.Info("Serial output", "text", string(s.line))
	s.line = s.line[:0]
}

// String returns the transmitted bytes as text.
func (s *LogSink) String() string {
	return string(s.Bytes)
}
