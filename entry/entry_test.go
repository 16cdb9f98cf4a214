package entry

import (
	"context"
	"crypto/ed25519"
	"errors"
	"reflect"
	"strings"
	"testing"

	"xdao.co/oplog/cidutil"
	"xdao.co/oplog/clock"
	"xdao.co/oplog/identity"
)

var errProviderDown = errors.New("provider unavailable")

// countingSigner wraps identity.Provider and records how often it is asked
// to sign. A non-nil err is returned instead of signing.
type countingSigner struct {
	identity.Provider
	calls int
	err   error
}

func (s *countingSigner) Sign(ctx context.Context, id *identity.Identity, data []byte) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.Provider.Sign(ctx, id, data)
}

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, string, string, []byte) (bool, error) {
	return false, errProviderDown
}

func mustIdentity(t *testing.T, name string, fill byte) *identity.Identity {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = fill
	}
	id, err := identity.FromSeed(name, seed)
	if err != nil {
		t.Fatalf("identity.FromSeed: %v", err)
	}
	return id
}

func mustCreate(t *testing.T, id *identity.Identity, logID string, payload any, opts CreateOptions) *Entry {
	t.Helper()
	e, err := Create(context.Background(), identity.Provider{}, id, logID, payload, opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return e
}

func TestCreate_Example(t *testing.T) {
	ctx := context.Background()
	idA := mustIdentity(t, "userA", 0xA1)

	e, err := Create(ctx, identity.Provider{}, idA, "log1", "hello", CreateOptions{Next: []string{}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.V != 2 {
		t.Fatalf("expected v=2, got %d", e.V)
	}
	if e.Next == nil || len(e.Next) != 0 {
		t.Fatalf("expected empty next, got %#v", e.Next)
	}
	if e.Refs == nil || len(e.Refs) != 0 {
		t.Fatalf("expected empty refs, got %#v", e.Refs)
	}
	if e.Clock != clock.New(idA.PublicKey) {
		t.Fatalf("expected default clock for public key, got %+v", e.Clock)
	}
	if e.Key != idA.PublicKey {
		t.Fatalf("key = %q, want %q", e.Key, idA.PublicKey)
	}
	if e.Identity != idA.Hash {
		t.Fatalf("identity = %q, want %q", e.Identity, idA.Hash)
	}
	if e.Sig == "" {
		t.Fatalf("expected signature")
	}
	if e.Hash != "" {
		t.Fatalf("hash must not be assigned before encoding, got %q", e.Hash)
	}
	if e.Payload != "hello" {
		t.Fatalf("payload = %v, want hello", e.Payload)
	}

	ok, err := Verify(ctx, identity.Provider{}, e)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected created entry to verify")
	}

	block, err := Encode(ctx, e, EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(block.Hash, cidutil.HashPrefix) {
		t.Fatalf("hash %q missing prefix %q", block.Hash, cidutil.HashPrefix)
	}
	decoded, err := Decode(ctx, block.Bytes, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Payload != "hello" {
		t.Fatalf("decoded payload = %v, want hello", decoded.Payload)
	}
	if decoded.Hash != block.Hash {
		t.Fatalf("decoded hash = %q, want %q", decoded.Hash, block.Hash)
	}
}

func TestCreate_ArgumentErrors(t *testing.T) {
	ctx := context.Background()
	id := mustIdentity(t, "a", 1)

	tests := []struct {
		name    string
		signer  *countingSigner
		nilSig  bool
		id      *identity.Identity
		logID   string
		payload any
		rule    string
	}{
		{name: "missing signer", nilSig: true, id: id, logID: "log", payload: "x", rule: "OPLOG-ARG-001"},
		{name: "missing identity", signer: &countingSigner{}, logID: "log", payload: "x", rule: "OPLOG-ARG-002"},
		{name: "missing log id", signer: &countingSigner{}, id: id, payload: "x", rule: "OPLOG-ARG-003"},
		{name: "missing payload", signer: &countingSigner{}, id: id, logID: "log", rule: "OPLOG-ARG-004"},
		{name: "nil pointer payload", signer: &countingSigner{}, id: id, logID: "log", payload: (*string)(nil), rule: "OPLOG-ARG-004"},
		{name: "pointer to nil payload", signer: &countingSigner{}, id: id, logID: "log", payload: new(*int), rule: "OPLOG-ARG-004"},
		{name: "nil map pointer payload", signer: &countingSigner{}, id: id, logID: "log", payload: (*map[string]any)(nil), rule: "OPLOG-ARG-004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var signer Signer
			if !tt.nilSig {
				signer = tt.signer
			}
			enc := &countingEncryptor{}
			_, err := Create(ctx, signer, tt.id, tt.logID, tt.payload, CreateOptions{EncryptPayload: enc})
			if !IsKind(err, KindArgument) {
				t.Fatalf("expected KindArgument, got %v", err)
			}
			if RuleID(err) != tt.rule {
				t.Fatalf("expected RuleID %s, got %s", tt.rule, RuleID(err))
			}
			if tt.signer != nil && tt.signer.calls != 0 {
				t.Fatalf("signer called %d times before validation", tt.signer.calls)
			}
			if enc.calls != 0 {
				t.Fatalf("encryptor called %d times before validation", enc.calls)
			}
		})
	}
}

func TestCreate_SignerFailureIsProviderError(t *testing.T) {
	signer := &countingSigner{err: errProviderDown}
	_, err := Create(context.Background(), signer, mustIdentity(t, "a", 1), "log", "x", CreateOptions{})
	if !IsKind(err, KindProvider) {
		t.Fatalf("expected KindProvider, got %v", err)
	}
	if !errors.Is(err, errProviderDown) {
		t.Fatalf("expected provider error to be preserved, got %v", err)
	}
}

func TestCreate_CopiesInputs(t *testing.T) {
	next := []string{"zdpuA", "zdpuB"}
	refs := []string{"zdpuC"}
	e := mustCreate(t, mustIdentity(t, "a", 1), "log", "x", CreateOptions{Next: next, Refs: refs})
	next[0] = "mutated"
	refs[0] = "mutated"
	if e.Next[0] != "zdpuA" || e.Refs[0] != "zdpuC" {
		t.Fatalf("entry aliases caller slices: next=%v refs=%v", e.Next, e.Refs)
	}
	ok, err := Verify(context.Background(), identity.Provider{}, e)
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
}

func TestCreate_UsesGivenClock(t *testing.T) {
	c := clock.At("writer", 7)
	e := mustCreate(t, mustIdentity(t, "a", 1), "log", "x", CreateOptions{Clock: &c})
	if e.Clock != c {
		t.Fatalf("clock = %+v, want %+v", e.Clock, c)
	}
}

func TestCreate_Dilithium3Identity(t *testing.T) {
	ctx := context.Background()
	id, err := identity.NewDilithium3("pq", &sequenceReader{})
	if err != nil {
		t.Fatalf("NewDilithium3: %v", err)
	}
	e, err := Create(ctx, identity.Provider{}, id, "log", map[string]any{"op": "ADD"}, CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := Verify(ctx, identity.Provider{}, e)
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
}

type sequenceReader struct{ b byte }

func (r *sequenceReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func TestVerify_TamperedFields(t *testing.T) {
	ctx := context.Background()
	id := mustIdentity(t, "a", 1)
	base := mustCreate(t, id, "log", "payload", CreateOptions{Next: []string{"zdpuA"}, Refs: []string{"zdpuB"}})

	tests := []struct {
		name   string
		mutate func(e *Entry)
	}{
		{"id", func(e *Entry) { e.ID = "other" }},
		{"payload", func(e *Entry) { e.Payload = "changed" }},
		{"next", func(e *Entry) { e.Next = append(e.Next, "zdpuX") }},
		{"next order", func(e *Entry) { e.Next = []string{"zdpuZ"} }},
		{"refs", func(e *Entry) { e.Refs = []string{} }},
		{"clock time", func(e *Entry) { e.Clock = e.Clock.Tick() }},
		{"clock id", func(e *Entry) { e.Clock.ID = "someone-else" }},
		{"v", func(e *Entry) { e.V = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base.Clone()
			tt.mutate(e)
			ok, err := Verify(ctx, identity.Provider{}, e)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if ok {
				t.Fatalf("tampered %s still verifies", tt.name)
			}
		})
	}

	ok, err := Verify(ctx, identity.Provider{}, base)
	if err != nil || !ok {
		t.Fatalf("original entry no longer verifies: ok=%v err=%v", ok, err)
	}
}

func TestVerify_UnsignedFieldsNotCovered(t *testing.T) {
	ctx := context.Background()
	id := mustIdentity(t, "a", 1)
	e := mustCreate(t, id, "log", "payload", CreateOptions{})
	e.Identity = "zdpuSomethingElse"
	e.Hash = "zdpuWhatever"
	ok, err := Verify(ctx, identity.Provider{}, e)
	if err != nil || !ok {
		t.Fatalf("identity/hash must not be signed: ok=%v err=%v", ok, err)
	}
}

func TestVerify_WrongKey(t *testing.T) {
	ctx := context.Background()
	e := mustCreate(t, mustIdentity(t, "a", 1), "log", "x", CreateOptions{})
	e.Key = mustIdentity(t, "b", 2).PublicKey
	ok, err := Verify(ctx, identity.Provider{}, e)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("entry verified under another key")
	}
}

func TestVerify_StructuralErrors(t *testing.T) {
	ctx := context.Background()
	e := mustCreate(t, mustIdentity(t, "a", 1), "log", "x", CreateOptions{})

	noKey := e.Clone()
	noKey.Key = ""
	noSig := e.Clone()
	noSig.Sig = ""
	noPayload := e.Clone()
	noPayload.Payload = nil

	tests := []struct {
		name     string
		verifier Verifier
		entry    *Entry
		rule     string
	}{
		{"missing provider", nil, e, "OPLOG-STR-001"},
		{"nil entry", identity.Provider{}, nil, "OPLOG-STR-002"},
		{"not an entry", identity.Provider{}, noPayload, "OPLOG-STR-002"},
		{"missing key", identity.Provider{}, noKey, "OPLOG-STR-003"},
		{"missing sig", identity.Provider{}, noSig, "OPLOG-STR-004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(ctx, tt.verifier, tt.entry)
			if !IsKind(err, KindStructure) {
				t.Fatalf("expected KindStructure, got %v", err)
			}
			if RuleID(err) != tt.rule {
				t.Fatalf("expected RuleID %s, got %s", tt.rule, RuleID(err))
			}
		})
	}
}

func TestVerify_ProviderFailure(t *testing.T) {
	e := mustCreate(t, mustIdentity(t, "a", 1), "log", "x", CreateOptions{})
	_, err := Verify(context.Background(), failingVerifier{}, e)
	if !IsKind(err, KindProvider) || !errors.Is(err, errProviderDown) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestIsEntry(t *testing.T) {
	full := func() *Entry {
		return &Entry{
			ID:      "log",
			Payload: "x",
			Next:    []string{},
			Refs:    []string{},
			Clock:   clock.New("k"),
			V:       Version,
		}
	}
	if !IsEntry(full()) {
		t.Fatalf("expected complete entry to be an entry")
	}

	extra := full()
	extra.Key, extra.Sig, extra.Hash = "k", "s", "h"
	if !IsEntry(extra) {
		t.Fatalf("extra fields must not affect IsEntry")
	}

	missing := map[string]func(e *Entry){
		"id":      func(e *Entry) { e.ID = "" },
		"payload":           func(e *Entry) { e.Payload = nil },
		"typed nil payload": func(e *Entry) { e.Payload = (*int)(nil) },
		"next":    func(e *Entry) { e.Next = nil },
		"refs":    func(e *Entry) { e.Refs = nil },
		"clock":   func(e *Entry) { e.Clock = clock.Clock{} },
		"v":       func(e *Entry) { e.V = 0 },
	}
	for field, drop := range missing {
		e := full()
		drop(e)
		if IsEntry(e) {
			t.Fatalf("IsEntry true without %s", field)
		}
	}
	if IsEntry(nil) {
		t.Fatalf("IsEntry(nil) must be false")
	}
}

func TestIsEqual(t *testing.T) {
	a := &Entry{ID: "x", Hash: "zdpuA"}
	b := &Entry{ID: "y", Hash: "zdpuA"}
	c := &Entry{ID: "x", Hash: "zdpuC"}
	unhashed := &Entry{ID: "x"}

	if !IsEqual(a, b) {
		t.Fatalf("entries with the same hash must be equal")
	}
	if IsEqual(a, c) {
		t.Fatalf("entries with different hashes must differ")
	}
	if IsEqual(unhashed, unhashed) {
		t.Fatalf("an entry without a hash is not equal to itself")
	}
	if IsEqual(unhashed, &Entry{ID: "x"}) {
		t.Fatalf("structurally identical unhashed entries must not be equal")
	}
	if IsEqual(a, nil) || IsEqual(nil, a) {
		t.Fatalf("nil is never equal")
	}
}

func TestClone(t *testing.T) {
	e := &Entry{Next: []string{"a"}, Refs: []string{"b"}, EncryptedPayload: []byte{1}}
	c := e.Clone()
	c.Next[0], c.Refs[0], c.EncryptedPayload[0] = "x", "y", 9
	if !reflect.DeepEqual(e, &Entry{Next: []string{"a"}, Refs: []string{"b"}, EncryptedPayload: []byte{1}}) {
		t.Fatalf("Clone shares state: %+v", e)
	}
	if (*Entry)(nil).Clone() != nil {
		t.Fatalf("Clone(nil) must be nil")
	}
}
