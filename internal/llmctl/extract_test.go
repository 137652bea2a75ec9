package llmctl

import "testing"

func TestExtractDeltaPrefersMessageContent(t *testing.T) {
	delta, terminal := extractDelta(`{"message":{"content":"hi"},"response":"wrong","delta":"wrong"}`)
	if delta != "hi" || terminal {
		t.Fatalf("delta=%q terminal=%v", delta, terminal)
	}
}

func TestExtractDeltaFallsBackToResponse(t *testing.T) {
	delta, _ := extractDelta(`{"response":"hi there"}`)
	if delta != "hi there" {
		t.Fatalf("delta=%q", delta)
	}
}

func TestExtractDeltaFallsBackToDelta(t *testing.T) {
	delta, _ := extractDelta(`{"delta":"partial"}`)
	if delta != "partial" {
		t.Fatalf("delta=%q", delta)
	}
}

func TestExtractDeltaMarksTerminalOnDone(t *testing.T) {
	delta, terminal := extractDelta(`{"done":true}`)
	if delta != "" || !terminal {
		t.Fatalf("delta=%q terminal=%v", delta, terminal)
	}
}

func TestExtractDeltaAcceptsFinalOnTerminalChunk(t *testing.T) {
	delta, terminal := extractDelta(`{"done":true,"final":"the end"}`)
	if delta != "the end" || !terminal {
		t.Fatalf("delta=%q terminal=%v", delta, terminal)
	}
}

func TestExtractDeltaIgnoresMalformedLine(t *testing.T) {
	delta, terminal := extractDelta(`not json`)
	if delta != "" || terminal {
		t.Fatalf("delta=%q terminal=%v", delta, terminal)
	}
}

func TestExtractNonStreamTextPrefersMessageContent(t *testing.T) {
	out := map[string]any{"message": map[string]any{"content": "hello"}, "response": "wrong"}
	if got := extractNonStreamText(out); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractNonStreamTextFallsBackToResponse(t *testing.T) {
	out := map[string]any{"response": "hello there"}
	if got := extractNonStreamText(out); got != "hello there" {
		t.Fatalf("got %q", got)
	}
}

func TestStripTerminatorsRemovesBothMarkers(t *testing.T) {
	got := stripTerminators("hello</s> world<|eot_id|>!")
	if got != "hello world!" {
		t.Fatalf("got %q", got)
	}
}
