package hasher

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestSumKnownVector(t *testing.T) {
	h := NewSHA256()

	// SHA-256("abc"), the FIPS 180-2 test vector.
	want, _ := hex.DecodeString("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")

	got := h.Sum([]byte("abc"))
	if !bytes.Equal(got, want) {
		t.Errorf("Sum(abc) = %x, want %x", got, want)
	}
	if !bytes.Equal(h.SumString("abc"), want) {
		t.Error("SumString should match Sum over the same bytes")
	}
}

func TestSumLength(t *testing.T) {
	h := NewSHA256()
	if n := len(h.Sum(nil)); n != 32 {
		t.Errorf("digest length = %d, want 32", n)
	}
	if n := len(h.SumString("")); n != 32 {
		t.Errorf("digest length = %d, want 32", n)
	}
}

func TestSumDeterministic(t *testing.T) {
	h := NewSHA256()
	a := h.SumString("0YyTbPKCvKS5QPGBYBXJ6424A83zfeatu")
	b := h.SumString("0YyTbPKCvKS5QPGBYBXJ6424A83zfeatu")
	if !bytes.Equal(a, b) {
		t.Error("same input must produce the same digest")
	}
	if bytes.Equal(a, h.SumString("other")) {
		t.Error("different inputs should produce different digests")
	}
}
