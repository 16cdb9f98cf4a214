// Package entrystore persists entries in a content-addressable block store.
//
// The store is a thin layer over entry.Encode/entry.Decode: the CAS key of
// every block is the entry hash, so an entry can be fetched by the hashes
// other entries list in next and refs.
package entrystore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"xdao.co/oplog/cidutil"
	"xdao.co/oplog/entry"
	"xdao.co/oplog/storage"
)

// ErrHashMismatch is returned when a block's CAS address differs from the
// entry hash computed for it.
var ErrHashMismatch = errors.New("entrystore: cas address does not match entry hash")

// ErrInvalidSignature is returned by Get when Verifier is set and the
// entry's signature does not verify.
var ErrInvalidSignature = errors.New("entrystore: invalid entry signature")

// Store reads and writes entries through a CAS.
type Store struct {
	CAS           storage.CAS
	EncodeOptions entry.EncodeOptions
	DecodeOptions entry.DecodeOptions
	// Verifier, when set, makes Get reject entries whose signature does
	// not verify.
	Verifier entry.Verifier
	// Logger receives debug records for each block moved. Nil discards.
	Logger *slog.Logger
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Put encodes e and writes the block. It returns the entry hash and sets
// e.Hash to it.
func (s *Store) Put(ctx context.Context, e *entry.Entry) (string, error) {
	if s.CAS == nil {
		return "", fmt.Errorf("entrystore: nil CAS")
	}
	block, err := entry.Encode(ctx, e, s.EncodeOptions)
	if err != nil {
		return "", err
	}
	id, err := s.CAS.Put(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("entrystore: put %s: %w", block.Hash, err)
	}
	if got := cidutil.Format(id); got != block.Hash {
		s.logger().WarnContext(ctx, "cas address mismatch", "hash", block.Hash, "cas", got)
		return "", ErrHashMismatch
	}
	e.Hash = block.Hash
	s.logger().DebugContext(ctx, "entry stored",
		"hash", block.Hash,
		"log", e.ID,
		"bytes", len(block.Bytes),
		"sealed", s.EncodeOptions.EncryptEntry != nil,
	)
	return block.Hash, nil
}

// Get reads and decodes the entry stored under hash. Missing blocks are
// reported with storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, hash string) (*entry.Entry, error) {
	if s.CAS == nil {
		return nil, fmt.Errorf("entrystore: nil CAS")
	}
	id, err := cidutil.Parse(hash)
	if err != nil {
		return nil, fmt.Errorf("entrystore: %w: %v", storage.ErrInvalidCID, err)
	}
	data, err := s.CAS.Get(id)
	if err != nil {
		return nil, fmt.Errorf("entrystore: get %s: %w", hash, err)
	}
	e, err := entry.Decode(ctx, data, s.DecodeOptions)
	if err != nil {
		return nil, err
	}
	if e.Hash != cidutil.Format(id) {
		return nil, ErrHashMismatch
	}
	if s.Verifier != nil {
		ok, err := entry.Verify(ctx, s.Verifier, e)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger().WarnContext(ctx, "entry signature rejected", "hash", e.Hash, "key", e.Key)
			return nil, ErrInvalidSignature
		}
	}
	s.logger().DebugContext(ctx, "entry loaded", "hash", e.Hash, "log", e.ID)
	return e, nil
}

// Has reports whether a block for hash is present. Malformed hashes are
// reported as absent.
func (s *Store) Has(hash string) bool {
	if s.CAS == nil {
		return false
	}
	id, err := cidutil.Parse(hash)
	if err != nil {
		return false
	}
	return s.CAS.Has(id)
}
