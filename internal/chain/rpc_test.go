package chain

import (
	"math/big"
	"strings"
	"testing"
)

func TestSignedWord(t *testing.T) {
	// -500000000 as a 256-bit two's-complement word.
	negHex := strings.Repeat("f", 56) + "e2329b00"
	words, err := DecodeWords("0x"+negHex, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := SignedWord(words[0])
	if got.Cmp(big.NewInt(-500000000)) != 0 {
		t.Errorf("negative answer: got %s, want -500000000", got)
	}

	posHex := strings.Repeat("0", 56) + "1dcd6500"
	words, err = DecodeWords("0x"+posHex, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got = SignedWord(words[0])
	if got.Cmp(big.NewInt(500000000)) != 0 {
		t.Errorf("positive answer: got %s, want 500000000", got)
	}
}

func TestPadAddress(t *testing.T) {
	addr := "0x00000000000000000000000000000000000000a1"
	want := strings.Repeat("0", 24) + "00000000000000000000000000000000000000a1"
	if got := padAddress(addr); got != want {
		t.Errorf("pad: got %s", got)
	}

	// Uppercase input is lowered.
	if got := padAddress("0xA1"); got != strings.Repeat("0", 62)+"a1" {
		t.Errorf("short pad: got %s", got)
	}

	// Oversized input keeps its low-order word instead of panicking.
	long := "0x" + strings.Repeat("ab", 40)
	got := padAddress(long)
	if len(got) != 64 {
		t.Fatalf("oversized pad length: got %d", len(got))
	}
	if got != strings.Repeat("ab", 32) {
		t.Errorf("oversized pad: got %s", got)
	}
}
