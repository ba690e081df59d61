package validate

import "testing"

func TestEmail(t *testing.T) {
	valid := []string{"joe@smith.com", "a.b+c@sub.example.org"}
	for _, addr := range valid {
		if !Email(addr) {
			t.Fatalf("expected %q to be valid", addr)
		}
	}
	invalid := []string{"", "joe", "joe@", "@smith.com", "joe smith@example.com"}
	for _, addr := range invalid {
		if Email(addr) {
			t.Fatalf("expected %q to be invalid", addr)
		}
	}
}
