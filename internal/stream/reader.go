package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/JaymarM28/kari-transcriptor/domain"
)

// Largest data line accepted; full transcripts of long recordings are big.
const maxEventSize = 8 * 1024 * 1024

// Reader decodes progress events from a text/event-stream body.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates an event reader over r
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the stream ends.
func (r *Reader) Next() (domain.ProgressEvent, error) {
	var data strings.Builder
	hasData := false

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if hasData {
				return decodeEvent(data.String())
			}
			continue
		}

		// Comments carry keep-alives only.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		if field != "data" {
			continue
		}
		if hasData {
			data.WriteByte('\n')
		}
		data.WriteString(value)
		hasData = true
	}

	if err := r.scanner.Err(); err != nil {
		return domain.ProgressEvent{}, err
	}
	if hasData {
		return decodeEvent(data.String())
	}
	return domain.ProgressEvent{}, io.EOF
}

func decodeEvent(data string) (domain.ProgressEvent, error) {
	var event domain.ProgressEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return event, nil
}

func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = strings.TrimPrefix(line[idx+1:], " ")
	return field, value
}
