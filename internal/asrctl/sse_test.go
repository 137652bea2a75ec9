package asrctl

import "testing"

func TestSSEParserDeliversOnBlankLine(t *testing.T) {
	p := NewSSEParser()
	var got []string
	p.Push("data: {\"type\":\"partial\"}\n\n", func(s string) { got = append(got, s) })

	if len(got) != 1 || got[0] != `{"type":"partial"}` {
		t.Fatalf("got %v", got)
	}
}

func TestSSEParserJoinsMultilineData(t *testing.T) {
	p := NewSSEParser()
	var got []string
	p.Push("data: line one\ndata: line two\n\n", func(s string) { got = append(got, s) })

	if len(got) != 1 || got[0] != "line one\nline two" {
		t.Fatalf("got %v", got)
	}
}

func TestSSEParserFiltersDoneSentinel(t *testing.T) {
	p := NewSSEParser()
	var got []string
	p.Push("data: [DONE]\n\n", func(s string) { got = append(got, s) })

	if len(got) != 0 {
		t.Fatalf("got %v, want [DONE] filtered out", got)
	}
}

func TestSSEParserFiltersEmptyPayload(t *testing.T) {
	p := NewSSEParser()
	var got []string
	p.Push(": comment only, no data field\n\n", func(s string) { got = append(got, s) })

	if len(got) != 0 {
		t.Fatalf("got %v, want empty payload filtered out", got)
	}
}

func TestSSEParserHandlesByteBoundarySplits(t *testing.T) {
	p := NewSSEParser()
	var got []string
	onEvent := func(s string) { got = append(got, s) }

	full := "data: {\"type\":\"final\",\"text\":\"hello\"}\n\n"
	for i := 0; i < len(full); i++ {
		p.Push(string(full[i]), onEvent)
	}

	if len(got) != 1 || got[0] != `{"type":"final","text":"hello"}` {
		t.Fatalf("got %v", got)
	}
}

func TestSSEParserDeliversMultipleEventsInOneChunk(t *testing.T) {
	p := NewSSEParser()
	var got []string
	p.Push("data: first\n\ndata: second\n\n", func(s string) { got = append(got, s) })

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("got %v", got)
	}
}

func TestSSEParserFlushDeliversResidual(t *testing.T) {
	p := NewSSEParser()
	var got []string
	onEvent := func(s string) { got = append(got, s) }

	p.Push("data: trailing, no blank line", onEvent)
	if len(got) != 0 {
		t.Fatalf("should not deliver before Flush, got %v", got)
	}

	p.Flush(onEvent)
	if len(got) != 1 || got[0] != "trailing, no blank line" {
		t.Fatalf("got %v", got)
	}
}

func TestSSEParserFlushOnEmptyBufferIsNoOp(t *testing.T) {
	p := NewSSEParser()
	var got []string
	p.Flush(func(s string) { got = append(got, s) })

	if len(got) != 0 {
		t.Fatalf("got %v, want no-op on empty buffer", got)
	}
}
