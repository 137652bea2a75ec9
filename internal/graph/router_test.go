package graph

import "testing"

func wire(fromNode, fromPort, toNode, toPort string) Wire {
	return Wire{From: OutPort(fromNode, fromPort), To: InPort(toNode, toPort)}
}

func TestRouterExclusivity(t *testing.T) {
	r := NewRouter()
	var bReceived []any
	r.Register(InPort("B", "y"), func(p any) { bReceived = append(bReceived, p) })

	if err := r.AddWire(wire("A", "x", "B", "y")); err != nil {
		t.Fatal(err)
	}
	if err := r.AddWire(wire("A2", "x", "B", "y")); err != nil {
		t.Fatal(err)
	}

	r.SendFrom("A", "x", "from-A")
	if len(bReceived) != 0 {
		t.Fatalf("B should not receive from A after replacement, got %v", bReceived)
	}

	r.SendFrom("A2", "x", "from-A2")
	if len(bReceived) != 1 || bReceived[0] != "from-A2" {
		t.Fatalf("B should receive exactly one message from A2, got %v", bReceived)
	}

	wires := r.ListWires()
	if len(wires) != 1 {
		t.Fatalf("want exactly 1 wire after replacement, got %d", len(wires))
	}
}

func TestRouterFanOut(t *testing.T) {
	r := NewRouter()
	var b, c int
	r.Register(InPort("B", "in"), func(any) { b++ })
	r.Register(InPort("C", "in"), func(any) { c++ })

	_ = r.AddWire(wire("A", "out", "B", "in"))
	_ = r.AddWire(wire("A", "out", "C", "in"))

	r.SendFrom("A", "out", nil)
	if b != 1 || c != 1 {
		t.Fatalf("fan-out delivery: b=%d c=%d", b, c)
	}
}

func TestRouterUnregisteredInputIsNoOp(t *testing.T) {
	r := NewRouter()
	_ = r.AddWire(wire("A", "out", "B", "in"))
	// No handler registered for B:in:in — SendFrom must not panic.
	r.SendFrom("A", "out", "hello")
}

func TestRouterSnapshotDuringDelivery(t *testing.T) {
	r := NewRouter()
	var delivered []string

	r.Register(InPort("B", "in"), func(any) {
		delivered = append(delivered, "B")
		// Mutate the wire set mid-delivery: add a new subscriber.
		r.Register(InPort("C", "in"), func(any) { delivered = append(delivered, "C") })
		_ = r.AddWire(wire("A", "out", "C", "in"))
	})

	_ = r.AddWire(wire("A", "out", "B", "in"))
	r.SendFrom("A", "out", nil)

	if len(delivered) != 1 || delivered[0] != "B" {
		t.Fatalf("snapshot violated: delivered=%v", delivered)
	}

	// A second send now reaches both, proving the mutation took effect
	// for subsequent calls.
	r.SendFrom("A", "out", nil)
	if len(delivered) != 3 {
		t.Fatalf("second send should reach both subscribers: %v", delivered)
	}
}

func TestRouterSelfLoopRejected(t *testing.T) {
	r := NewRouter()
	err := r.AddWire(wire("A", "out", "A", "in"))
	if err == nil {
		t.Fatal("expected self-loop to be rejected")
	}
}

func TestRouterOnDeliverFiresOnlyForSuccessfulDelivery(t *testing.T) {
	r := NewRouter()
	var events []DeliverEvent
	r.OnDeliver(func(ev DeliverEvent) { events = append(events, ev) })

	r.Register(InPort("B", "in"), func(any) {})
	if err := r.AddWire(wire("A", "out", "B", "in")); err != nil {
		t.Fatal(err)
	}

	r.SendFrom("A", "out", "payload")
	r.SendFrom("ghost", "out", "nothing") // no wire from "ghost", no event

	if len(events) != 1 {
		t.Fatalf("want exactly 1 deliver event, got %d", len(events))
	}
	if events[0].From.NodeID != "A" || events[0].To.NodeID != "B" || events[0].Payload != "payload" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestPortAddressString(t *testing.T) {
	addr := InPort("node1", "text")
	if addr.String() != "node1:in:text" {
		t.Fatalf("got %q", addr.String())
	}
}
