package cidutil

import (
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
)

func TestCIDv1DagCBORSHA256_Prefix(t *testing.T) {
	s := CIDv1DagCBORSHA256([]byte{0xa0})
	if !strings.HasPrefix(s, HashPrefix) {
		t.Fatalf("expected prefix %q, got %q", HashPrefix, s)
	}
}

func TestCIDv1DagCBORSHA256_Deterministic(t *testing.T) {
	a := CIDv1DagCBORSHA256([]byte("block"))
	b := CIDv1DagCBORSHA256([]byte("block"))
	if a != b {
		t.Fatalf("expected deterministic hash: %s vs %s", a, b)
	}
	if c := CIDv1DagCBORSHA256([]byte("other")); c == a {
		t.Fatalf("distinct bytes produced the same hash")
	}
}

func TestParseAcceptsOtherBases(t *testing.T) {
	id, err := CIDv1DagCBORSHA256CID([]byte("block"))
	if err != nil {
		t.Fatalf("CIDv1DagCBORSHA256CID: %v", err)
	}
	// String() renders base32 for CIDv1.
	got, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Equals(id) {
		t.Fatalf("Parse mismatch: got %s want %s", got, id)
	}
	if Format(got) != CIDv1DagCBORSHA256([]byte("block")) {
		t.Fatalf("Format did not normalize to base58btc")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "not-a-cid"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q): expected error", in)
		}
	}
}

func TestMatches(t *testing.T) {
	data := []byte("payload")
	h := CIDv1DagCBORSHA256(data)
	if !Matches(h, data) {
		t.Fatalf("expected hash to match its bytes")
	}
	if Matches(h, []byte("tampered")) {
		t.Fatalf("expected mismatch for different bytes")
	}
	if Format(cid.Undef) != "" {
		t.Fatalf("expected empty string for undefined CID")
	}
}
