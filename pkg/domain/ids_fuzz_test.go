package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseApplicantID checks parsing never panics and that accepted values round-trip.
func FuzzParseApplicantID(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("{550e8400-e29b-41d4-a716-446655440000}")
	f.Add("urn:uuid:550e8400-e29b-41d4-a716-446655440000")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseApplicantID(input)
		if err != nil {
			return
		}
		if !utf8.ValidString(input) {
			t.Fatalf("accepted non-UTF8 input %q", input)
		}
		if id.IsNil() {
			t.Fatalf("accepted nil UUID from %q", input)
		}
		again, err := ParseApplicantID(id.String())
		if err != nil || again != id {
			t.Fatalf("round trip failed for %q: %v", input, err)
		}
	})
}
