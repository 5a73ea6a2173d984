package roster

import (
	"strings"
	"testing"
	"time"
)

func TestSequenceCodeProviderFormat(t *testing.T) {
	clock := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	provider := NewSequenceCodeProvider(clock)

	code := provider.NewCode()
	if code != "NAME-1700000000-1" {
		t.Fatalf("unexpected code %q", code)
	}
	if !strings.HasPrefix(code, synthesizedCodePrefix+"-") {
		t.Fatalf("expected namespaced code, got %q", code)
	}
}

func TestSequenceCodeProviderNeverRepeats(t *testing.T) {
	// A frozen clock forces uniqueness onto the sequence component.
	clock := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	provider := NewSequenceCodeProvider(clock)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code := provider.NewCode()
		if _, duplicate := seen[code]; duplicate {
			t.Fatalf("code %q issued twice", code)
		}
		seen[code] = struct{}{}
	}
}
