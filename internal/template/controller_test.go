package template

import (
	"testing"

	"github.com/graphrt/runtime/internal/graph"
)

func TestVariableNamesDeduplicatesInOrder(t *testing.T) {
	names := variableNames("Hello {{name}}, your order {{orderId}} for {{name}} is ready")
	want := []string{"name", "orderId"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestNewRegistersTriggerAndVarPorts(t *testing.T) {
	router := graph.NewRouter()
	c := New("tmpl-1", Config{Template: "Hi {{name}}"}, router)

	ports := c.VarPorts()
	if len(ports) != 1 || ports[0] != "name" {
		t.Fatalf("VarPorts = %v", ports)
	}
}

func TestTriggerRendersWithSetVariables(t *testing.T) {
	router := graph.NewRouter()
	var got any
	router.Register(graph.InPort("sink", "in"), func(payload any) { got = payload })
	router.AddWire(graph.Wire{From: graph.OutPort("tmpl-1", "text"), To: graph.InPort("sink", "in")})

	c := New("tmpl-1", Config{Template: "Hello {{name}}, you are {{age}}"}, router)
	c.varHandler("name")(map[string]any{"text": "Ada"})
	c.varHandler("age")(map[string]any{"text": "36"})
	c.OnTrigger(nil)

	want := "Hello Ada, you are 36"
	if graph.Text(got) != want {
		t.Fatalf("rendered = %q, want %q", graph.Text(got), want)
	}
}

func TestTriggerRendersMissingVariableAsEmpty(t *testing.T) {
	router := graph.NewRouter()
	var got any
	router.Register(graph.InPort("sink", "in"), func(payload any) { got = payload })
	router.AddWire(graph.Wire{From: graph.OutPort("tmpl-1", "text"), To: graph.InPort("sink", "in")})

	c := New("tmpl-1", Config{Template: "Hello {{name}}!"}, router)
	c.OnTrigger(nil)

	want := "Hello !"
	if graph.Text(got) != want {
		t.Fatalf("rendered = %q, want %q", graph.Text(got), want)
	}
}
