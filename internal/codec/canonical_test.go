package codec

import (
	"bytes"
	"testing"
)

func TestCanonicalSortsKeys(t *testing.T) {
	type s struct {
		Zeta  string `json:"zeta"`
		Alpha string `json:"alpha"`
	}

	got, err := Canonical(s{Zeta: "z", Alpha: "a"})
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}

	want := []byte(`{"alpha":"a","zeta":"z"}`)
	if !bytes.Equal(got, want) {
		t.Fatalf("Canonical = %s, want %s", got, want)
	}
}

func TestCanonicalNestedAndArrayOrderPreserved(t *testing.T) {
	type inner struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	type outer struct {
		Items []inner `json:"items"`
		Name  string  `json:"name"`
	}

	got, err := Canonical(outer{Items: []inner{{B: 2, A: 1}, {B: 4, A: 3}}, Name: "x"})
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}

	want := []byte(`{"items":[{"a":1,"b":2},{"a":3,"b":4}],"name":"x"}`)
	if !bytes.Equal(got, want) {
		t.Fatalf("Canonical = %s, want %s", got, want)
	}
}

func TestCanonicalDeterministicAcrossCalls(t *testing.T) {
	v := map[string]interface{}{"c": 3, "a": 1, "b": 2}

	first, err := Canonical(v)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	second, err := Canonical(v)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("Canonical not deterministic: %s != %s", first, second)
	}
}
