// Package testsupport holds helpers shared by the package tests: fixture
// loading from testdata and order independent JSON comparison.
package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// FixturePath joins filename onto the package testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// LoadFixture reads path or fails the test.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON reads path and decodes it into dest or fails the test.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// Normalize round trips v through JSON so values of different Go types with
// the same encoding compare equal. Raw JSON bytes are decoded as is.
func Normalize(t testing.TB, v any) any {
	t.Helper()

	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			t.Fatalf("failed to marshal %T: %v", v, err)
		}
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to unmarshal %s: %v", data, err)
	}
	return out
}

// JSONEqual reports whether want and got encode to the same JSON document,
// ignoring key order. Either may be raw JSON bytes.
func JSONEqual(t testing.TB, want, got any) bool {
	t.Helper()
	return reflect.DeepEqual(Normalize(t, want), Normalize(t, got))
}

// AssertJSONEqual fails the test when want and got differ as JSON.
func AssertJSONEqual(t testing.TB, want, got any) {
	t.Helper()

	if JSONEqual(t, want, got) {
		return
	}
	w, _ := json.MarshalIndent(Normalize(t, want), "", "  ")
	g, _ := json.MarshalIndent(Normalize(t, got), "", "  ")
	t.Errorf("JSON mismatch\n got: %s\nwant: %s", g, w)
}
