package conductor

import (
	"testing"
)

func TestProperties_SetGet(t *testing.T) {
	p := NewProperties()
	p.Set("media.class", "Audio/Sink")
	p.Set("node.name", "alsa-output")

	v, ok := p.Get("media.class")
	if !ok || v != "Audio/Sink" {
		t.Fatalf("expected Audio/Sink, got %q (present=%v)", v, ok)
	}
	if !p.Contains("node.name") {
		t.Fatalf("expected node.name to be present")
	}
	if _, ok := p.Get("missing"); ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestProperties_OverwriteKeepsOrder(t *testing.T) {
	p := NewProperties()
	p.Set("a", "1")
	p.Set("b", "2")
	p.Set("a", "3")

	if p.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", p.Len())
	}
	keys := p.Keys()
	if keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected overwrite to keep iteration order, got %v", keys)
	}
	v, _ := p.Get("a")
	if v != "3" {
		t.Fatalf("expected overwritten value 3, got %q", v)
	}
}

func TestProperties_FromMapIterationStable(t *testing.T) {
	m := map[string]string{"c": "3", "a": "1", "b": "2"}
	p := NewPropertiesFromMap(m)
	q := NewPropertiesFromMap(m)

	pk, qk := p.Keys(), q.Keys()
	if len(pk) != 3 || len(qk) != 3 {
		t.Fatalf("expected 3 keys in both bags")
	}
	for i := range pk {
		if pk[i] != qk[i] {
			t.Fatalf("expected identical iteration order, got %v vs %v", pk, qk)
		}
	}
}

func TestProperties_ForEachStopsEarly(t *testing.T) {
	p := NewProperties()
	p.Set("a", "1")
	p.Set("b", "2")
	p.Set("c", "3")

	seen := 0
	p.ForEach(func(key, value string) bool {
		seen++
		return seen < 2
	})
	if seen != 2 {
		t.Fatalf("expected iteration to stop after 2 entries, saw %d", seen)
	}
}

func TestProperties_TypedLookup(t *testing.T) {
	p := NewProperties()
	p.Set("priority", "42")
	p.Set("enabled", "true")
	p.Set("volume", "0.75")
	p.Set("name", "default")

	if n, ok := p.GetInt64("priority"); !ok || n != 42 {
		t.Fatalf("expected int64 42, got %d (ok=%v)", n, ok)
	}
	if b, ok := p.GetBool("enabled"); !ok || !b {
		t.Fatalf("expected bool true, got %v (ok=%v)", b, ok)
	}
	if f, ok := p.GetFloat64("volume"); !ok || f != 0.75 {
		t.Fatalf("expected float64 0.75, got %v (ok=%v)", f, ok)
	}
	if _, ok := p.GetInt64("name"); ok {
		t.Fatalf("expected non-numeric value to fail int64 coercion")
	}
	if _, ok := p.GetInt64("missing"); ok {
		t.Fatalf("expected missing key to fail typed lookup")
	}
}

func TestProperties_CopyIsIndependent(t *testing.T) {
	p := NewProperties()
	p.Set("a", "1")
	cp := p.Copy()
	cp.Set("a", "2")
	cp.Set("b", "3")

	if v, _ := p.Get("a"); v != "1" {
		t.Fatalf("expected original untouched, got %q", v)
	}
	if p.Contains("b") {
		t.Fatalf("expected original to not gain keys from copy")
	}
}

func TestProperties_NilReceiverReads(t *testing.T) {
	var p *Properties
	if _, ok := p.Get("a"); ok {
		t.Fatalf("expected nil bag to be empty")
	}
	if p.Len() != 0 {
		t.Fatalf("expected nil bag length 0")
	}
}
