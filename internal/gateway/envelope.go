package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
)

// envelopeEvent is one event from the agent CLI's JSON output. The stream is
// either a JSON array of events or JSONL, and the final event with
// type=="result" carries the payload.
type envelopeEvent struct {
	Type             string          `json:"type"`
	StructuredOutput json.RawMessage `json:"structured_output,omitempty"`
	Result           string          `json:"result,omitempty"`
}

// extractResult pulls the structured payload out of raw agent CLI output.
// structured_output is preferred; the printed result string is parsed
// best-effort as JSON otherwise. Returns nil when no usable payload exists —
// callers convert that to an InvocationError.
func extractResult(data []byte) json.RawMessage {
	last := lastResultEvent(data)
	if last == nil {
		return nil
	}
	if len(last.StructuredOutput) > 0 && !bytes.Equal(last.StructuredOutput, []byte("null")) {
		return last.StructuredOutput
	}
	return ExtractJSONObject(last.Result)
}

func lastResultEvent(data []byte) *envelopeEvent {
	var events []envelopeEvent
	if err := json.Unmarshal(data, &events); err != nil {
		// Not an array; fall back to line-delimited events.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var ev envelopeEvent
			if json.Unmarshal(line, &ev) == nil {
				events = append(events, ev)
			}
		}
	}

	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == "result" {
			return &events[i]
		}
	}
	return nil
}

// ExtractJSONObject finds the outermost JSON object in free text. Agents
// sometimes wrap the payload in prose or code fences.
func ExtractJSONObject(text string) json.RawMessage {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil
	}
	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil
	}
	return candidate
}
