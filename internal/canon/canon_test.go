package canon

import "testing"

func TestMarshalSortsKeys(t *testing.T) {
	v := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	got, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestMarshalNestedObjectsAndArrays(t *testing.T) {
	v := map[string]interface{}{
		"z": []interface{}{3, 1, 2},
		"a": map[string]interface{}{"y": 1, "x": 2},
	}
	got, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"a":{"x":2,"y":1},"z":[3,1,2]}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestMarshalIsDeterministicAcrossFieldOrder(t *testing.T) {
	type payloadA struct {
		First  string `json:"first"`
		Second int    `json:"second"`
	}
	type payloadB struct {
		Second int    `json:"second"`
		First  string `json:"first"`
	}
	a, err := Marshal(payloadA{First: "x", Second: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(payloadB{Second: 1, First: "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("struct field order changed canonical output: %s vs %s", a, b)
	}
}

func TestMarshalNoWhitespace(t *testing.T) {
	got, err := Marshal(map[string]interface{}{"k": "v"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, b := range got {
		if b == ' ' || b == '\n' || b == '\t' {
			t.Fatalf("Marshal() contains insignificant whitespace: %q", got)
		}
	}
}

func TestMarshalPreservesLargeIntegers(t *testing.T) {
	// json.Number round-tripping must not lose precision or render floats.
	got, err := Marshal(map[string]interface{}{"n": 9007199254740993})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"n":9007199254740993}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestHashJSONIsStableAndSensitiveToContent(t *testing.T) {
	h1, err := HashJSON(map[string]interface{}{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("HashJSON: %v", err)
	}
	h2, err := HashJSON(map[string]interface{}{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("HashJSON: %v", err)
	}
	if h1 != h2 {
		t.Errorf("HashJSON not invariant to key order: %s vs %s", h1, h2)
	}
	h3, err := HashJSON(map[string]interface{}{"a": 1, "b": 3})
	if err != nil {
		t.Fatalf("HashJSON: %v", err)
	}
	if h1 == h3 {
		t.Error("HashJSON did not change when content changed")
	}
	if len(h1) != 64 {
		t.Errorf("HashJSON length = %d, want 64 (hex sha256)", len(h1))
	}
}

func TestSHA256HexKnownVector(t *testing.T) {
	got := SHA256Hex([]byte(""))
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("SHA256Hex(\"\") = %s, want %s", got, want)
	}
}
