package cidutil

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// HashPrefix is the leading text of every hash string produced by this
// package: base58btc multibase ("z") of a CIDv1 dag-cbor sha2-256 prefix.
const HashPrefix = "zdpu"

// Base is the single multibase used to render hash strings.
const Base = multibase.Base58BTC

// CIDv1DagCBORSHA256 returns the base58btc CIDv1 string using the "dag-cbor"
// multicodec and a sha2-256 multihash.
func CIDv1DagCBORSHA256(data []byte) string {
	id, err := CIDv1DagCBORSHA256CID(data)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return Format(id)
}

// CIDv1DagCBORSHA256CID returns a CIDv1 (dag-cbor + sha2-256) derived from data.
func CIDv1DagCBORSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, sum), nil
}

// Format renders id in the fixed hash string encoding (base58btc).
func Format(id cid.Cid) string {
	if !id.Defined() {
		return ""
	}
	s, err := id.StringOfBase(Base)
	if err != nil {
		// Only CIDv0 rejects non-base58btc bases; base58btc is always accepted.
		return id.String()
	}
	return s
}

// Parse decodes a hash string. Any multibase is accepted so that hashes
// copied from other tooling (base32 "bafy...") still resolve.
func Parse(s string) (cid.Cid, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return cid.Undef, fmt.Errorf("empty hash string")
	}
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid hash string %q: %w", s, err)
	}
	return id, nil
}

// Matches reports whether hash is the content address of data.
func Matches(hash string, data []byte) bool {
	want, err := Parse(hash)
	if err != nil {
		return false
	}
	got, err := CIDv1DagCBORSHA256CID(data)
	if err != nil {
		return false
	}
	return got.Equals(want)
}
