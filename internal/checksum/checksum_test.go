package checksum

import "testing"

func TestSum(t *testing.T) {
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestSumJSON_IgnoresWhitespace(t *testing.T) {
	a := SumJSON([]byte(`{"a": 1, "b": [1, 2]}`))
	b := SumJSON([]byte("{\n  \"a\":1,\n  \"b\":[1,2]\n}"))
	if a != b {
		t.Errorf("digests differ: %s vs %s", a, b)
	}
	if SumJSON([]byte(`{"a":2}`)) == a {
		t.Error("different documents share a digest")
	}
}

func TestSumJSON_InvalidFallsBack(t *testing.T) {
	if got, want := SumJSON([]byte("not json")), Sum([]byte("not json")); got != want {
		t.Errorf("SumJSON = %s, want %s", got, want)
	}
}
