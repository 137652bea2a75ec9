package relay

import (
	"encoding/json"
	"testing"
)

func TestDispatchRoutesByEvent(t *testing.T) {
	c := &Client{}

	var gotResponse, gotBegin, gotEnd bool
	var gotChunkSeq int
	var gotLines []LineChunk

	c.SetHandlers(Handlers{
		OnResponse: func(id string, f Frame) { gotResponse = true },
		OnBegin:    func(id string, m BeginMeta) { gotBegin = true },
		OnChunk:    func(id string, seq int, b []byte) { gotChunkSeq = seq },
		OnLines:    func(id string, lines []LineChunk) { gotLines = lines },
		OnEnd:      func(id string, m EndMeta) { gotEnd = true },
	})

	c.dispatch(Frame{Event: EventResponse, ID: "r1"})
	if !gotResponse {
		t.Fatal("expected OnResponse to fire")
	}

	beginMeta, _ := json.Marshal(BeginMeta{Status: 200})
	c.dispatch(Frame{Event: EventResponseBegin, ID: "r1", Meta: beginMeta})
	if !gotBegin {
		t.Fatal("expected OnBegin to fire")
	}

	c.dispatch(Frame{Event: EventResponseChunk, ID: "r1", Seq: 3, Bytes: []byte("hi")})
	if gotChunkSeq != 3 {
		t.Fatalf("gotChunkSeq = %d", gotChunkSeq)
	}

	c.dispatch(Frame{Event: EventResponseLines, ID: "r1", Lines: []LineChunk{{Line: `{"a":1}`, Seq: 0}}})
	if len(gotLines) != 1 {
		t.Fatalf("gotLines = %v", gotLines)
	}

	endMeta, _ := json.Marshal(EndMeta{Status: 200})
	c.dispatch(Frame{Event: EventResponseEnd, ID: "r1", Meta: endMeta})
	if !gotEnd {
		t.Fatal("expected OnEnd to fire")
	}
}

func TestDispatchUnknownEventIsIgnored(t *testing.T) {
	c := &Client{}
	c.SetHandlers(Handlers{
		OnResponse: func(id string, f Frame) { t.Fatal("should not fire") },
	})
	c.dispatch(Frame{Event: "something.else", ID: "r1"})
}

func TestNextIDIsUnique(t *testing.T) {
	c := &Client{}
	a, b := c.NextID(), c.NextID()
	if a == b {
		t.Fatal("NextID should be unique per call")
	}
}
