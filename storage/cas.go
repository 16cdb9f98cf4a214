package storage

import "github.com/ipfs/go-cid"

// CAS is the block store entries are written to.
//
// Contract:
//   - Blocks are canonical dag-cbor; the CID is CIDv1 dag-cbor sha2-256 of
//     the exact bytes written.
//   - Put is idempotent and blocks are immutable.
//   - Get returns ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
