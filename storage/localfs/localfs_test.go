package localfs

import (
	"os"
	"strings"
	"testing"

	"xdao.co/oplog/cidutil"
	"xdao.co/oplog/storage"
	"xdao.co/oplog/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return cas
	})
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	orig := testkit.Block(t, "original")
	id, err := cas.Put(orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the stored object out-of-band.
	path := cas.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, testkit.Block(t, "corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := cas.Get(id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrCIDMismatch)
	}
	if _, err := cas.Put(orig); err != storage.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}
	if cidutil.Format(id) != cidutil.CIDv1DagCBORSHA256(orig) {
		t.Fatalf("unexpected CID: got %s", id)
	}
}

func TestLocalFS_PathLayout(t *testing.T) {
	dir := t.TempDir()
	cas, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id, err := cas.Put(testkit.Block(t, "layout"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	name := cidutil.Format(id)
	path := cas.pathFor(id)
	if !strings.HasSuffix(path, name[len(name)-2:]+string(os.PathSeparator)+name) {
		t.Fatalf("unexpected path %s for %s", path, name)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("block file missing: %v", err)
	}
}

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
