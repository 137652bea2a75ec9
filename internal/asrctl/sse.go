package asrctl

import "strings"

// SSEParser accumulates bytes from an event stream and calls onEvent once
// per blank-line-terminated event with the concatenated `data:` payload.
// Grounded on the ndjson pump's incremental-buffer style, specialized to
// SSE framing (blank line terminator, "data:" field) rather than brace
// depth.
type SSEParser struct {
	buf strings.Builder
}

// NewSSEParser creates an empty parser.
func NewSSEParser() *SSEParser {
	return &SSEParser{}
}

// Push feeds a chunk of raw bytes, invoking onEvent(jsonText) for each
// complete event found.
func (p *SSEParser) Push(chunk string, onEvent func(string)) {
	p.buf.WriteString(chunk)
	full := p.buf.String()

	for {
		idx := strings.Index(full, "\n\n")
		if idx < 0 {
			break
		}
		block := full[:idx]
		full = full[idx+2:]
		p.deliver(block, onEvent)
	}

	p.buf.Reset()
	p.buf.WriteString(full)
}

func (p *SSEParser) deliver(block string, onEvent func(string)) {
	var data strings.Builder
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(after, " "))
		}
	}
	payload := data.String()
	if payload == "" || payload == "[DONE]" {
		return
	}
	onEvent(payload)
}

// Flush delivers any residual buffered event, e.g. on stream end without a
// trailing blank line.
func (p *SSEParser) Flush(onEvent func(string)) {
	if rest := strings.TrimSpace(p.buf.String()); rest != "" {
		p.deliver(rest, onEvent)
	}
	p.buf.Reset()
}
