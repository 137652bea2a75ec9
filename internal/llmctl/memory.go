package llmctl

// Msg is one chat turn, mirroring the wire shape the remote chat endpoint
// expects ({role, content}).
type Msg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

// buildTurn assembles the message list for one turn: optional system
// message, then (if memoryOn) the stored memory with its own leading
// system message preserved, then the new user message, pruned so the
// user-message count does not exceed maxTurns.
func buildTurn(systemPrompt string, useSystem bool, memoryOn bool, memory []Msg, userMessage string, maxTurns int) []Msg {
	var out []Msg
	if useSystem && trimmed(systemPrompt) != "" {
		out = append(out, Msg{Role: roleSystem, Content: systemPrompt})
	}
	if memoryOn {
		out = append(out, memory...)
	}
	out = append(out, Msg{Role: roleUser, Content: userMessage})

	return pruneToMaxTurns(out, maxTurns)
}

// pruneToMaxTurns removes the oldest non-system user message (and its
// immediately following assistant reply, if any) repeatedly until the
// remaining user-message count is <= maxTurns.
func pruneToMaxTurns(msgs []Msg, maxTurns int) []Msg {
	for countUser(msgs) > maxTurns {
		idx := firstUserIndex(msgs)
		if idx < 0 {
			break
		}
		end := idx + 1
		if end < len(msgs) && msgs[end].Role == roleAssistant {
			end++
		}
		msgs = append(append([]Msg{}, msgs[:idx]...), msgs[end:]...)
	}
	return msgs
}

func countUser(msgs []Msg) int {
	n := 0
	for _, m := range msgs {
		if m.Role == roleUser {
			n++
		}
	}
	return n
}

func firstUserIndex(msgs []Msg) int {
	for i, m := range msgs {
		if m.Role == roleUser {
			return i
		}
	}
	return -1
}

// updateMemory rebuilds the persisted memory after a completed turn:
// preserve any leading system message from the prior memory, append the
// new user message, append the assistant reply if non-empty, then prune
// to maxTurns.
func updateMemory(prior []Msg, userMessage, assistantText string, maxTurns int) []Msg {
	var out []Msg
	if len(prior) > 0 && prior[0].Role == roleSystem {
		out = append(out, prior[0])
	}
	out = append(out, prior[stripLeadingSystemCount(prior):]...)
	out = append(out, Msg{Role: roleUser, Content: userMessage})
	if trimmed(assistantText) != "" {
		out = append(out, Msg{Role: roleAssistant, Content: assistantText})
	}
	return pruneToMaxTurns(out, maxTurns)
}

func stripLeadingSystemCount(msgs []Msg) int {
	if len(msgs) > 0 && msgs[0].Role == roleSystem {
		return 1
	}
	return 0
}

func trimmed(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
