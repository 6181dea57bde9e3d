package source

import "testing"

func TestParseAuthKind(t *testing.T) {
	for _, s := range []string{"none", "basic", "bearer", "param"} {
		k, err := ParseAuthKind(s)
		if err != nil {
			t.Fatalf("ParseAuthKind(%q) error: %v", s, err)
		}
		if string(k) != s {
			t.Errorf("ParseAuthKind(%q) = %q", s, k)
		}
	}

	if _, err := ParseAuthKind("digest"); err == nil {
		t.Error("ParseAuthKind(digest) should fail")
	}
	if _, err := ParseAuthKind(""); err == nil {
		t.Error("ParseAuthKind of empty string should fail")
	}
}

func TestParseBodyKind(t *testing.T) {
	for _, s := range []string{"none", "text", "json", "form", "multi"} {
		k, err := ParseBodyKind(s)
		if err != nil {
			t.Fatalf("ParseBodyKind(%q) error: %v", s, err)
		}
		if string(k) != s {
			t.Errorf("ParseBodyKind(%q) = %q", s, k)
		}
	}

	if _, err := ParseBodyKind("xml"); err == nil {
		t.Error("ParseBodyKind(xml) should fail")
	}
}

func TestHasFallback(t *testing.T) {
	s := Source{}
	if s.HasFallback() {
		t.Error("empty source should have no fallback")
	}
	s.Fallback = []byte(`{"cached":true}`)
	if !s.HasFallback() {
		t.Error("source with payload should have a fallback")
	}
}
