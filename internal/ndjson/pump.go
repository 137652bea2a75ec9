// Package ndjson splits a concatenated byte stream into one JSON object
// per callback, tolerating brace-nested payloads split across arbitrary
// chunk boundaries and SSE-style "data:" prefixes.
package ndjson

import "strings"

// OnLine is invoked once per complete top-level JSON object, with the
// "data:" prefix (if any) already stripped and the "[DONE]" sentinel
// already filtered out.
type OnLine func(jsonText string)

// Pump is a streaming brace/string-aware splitter. It is not safe for
// concurrent use from multiple goroutines.
type Pump struct {
	buf     strings.Builder
	start   int
	inStr   bool
	escaped bool
	depth   int
}

// New creates an empty Pump.
func New() *Pump { return &Pump{} }

// Push feeds additional bytes (or a string) into the pump, invoking
// onLine for every complete JSON object discovered.
func (p *Pump) Push(chunk string, onLine OnLine) {
	p.buf.WriteString(chunk)
	full := p.buf.String()

	i := p.scanFrom(full, onLine)

	// Compact: keep only the unconsumed tail to bound memory use.
	if i > 0 {
		rest := full[i:]
		p.buf.Reset()
		p.buf.WriteString(rest)
		p.start -= i
		if p.start < 0 {
			p.start = 0
		}
	}
}

// scanFrom scans full starting at the pump's saved position, delivering
// each completed object via onLine and returning the index through which
// input has been fully consumed (safe to discard).
func (p *Pump) scanFrom(full string, onLine OnLine) int {
	consumed := 0
	i := p.start
	n := len(full)

	for ; i < n; i++ {
		c := full[i]

		if p.inStr {
			if p.escaped {
				p.escaped = false
			} else if c == '\\' {
				p.escaped = true
			} else if c == '"' {
				p.inStr = false
			}
			continue
		}

		switch c {
		case '"':
			p.inStr = true
		case '{':
			p.depth++
		case '}':
			if p.depth > 0 {
				p.depth--
				if p.depth == 0 {
					obj := full[consumed : i+1]
					p.deliver(obj, onLine)
					consumed = i + 1
				}
			}
		case '\n':
			if p.depth == 0 {
				line := strings.TrimSpace(full[consumed:i])
				if isDoneMarker(line) {
					consumed = i + 1
				}
			}
		}
	}

	p.start = n
	return consumed
}

func (p *Pump) deliver(obj string, onLine OnLine) {
	text := strings.TrimSpace(obj)
	text = strings.TrimPrefix(text, "data:")
	text = strings.TrimSpace(text)
	if text == "" || text == "[DONE]" {
		return
	}
	if onLine != nil {
		onLine(text)
	}
}

func isDoneMarker(line string) bool {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "data:"))
	return trimmed == "[DONE]"
}

// Flush delivers any residual non-whitespace buffered content as a final
// object, provided brace depth has returned to zero, then resets state.
func (p *Pump) Flush(onLine OnLine) {
	if p.depth == 0 {
		if rest := strings.TrimSpace(p.buf.String()); rest != "" {
			p.deliver(rest, onLine)
		}
	}
	p.buf.Reset()
	p.start = 0
	p.inStr = false
	p.escaped = false
	p.depth = 0
}
