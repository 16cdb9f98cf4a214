package ipfs

import (
	"os/exec"
	"strings"
	"testing"

	"xdao.co/oplog/storage"
	"xdao.co/oplog/storage/testkit"
)

func TestPutArgs(t *testing.T) {
	args := strings.Join(New(Options{}).putArgs(), " ")
	if !strings.Contains(args, "--cid-codec=dag-cbor") {
		t.Fatalf("put must use dag-cbor codec: %s", args)
	}
	if strings.Contains(args, "--pin=true") {
		t.Fatalf("unexpected pin flag: %s", args)
	}
	pinned := strings.Join(New(Options{Pin: true}).putArgs(), " ")
	if !strings.Contains(pinned, "--pin=true") {
		t.Fatalf("expected pin flag: %s", pinned)
	}
}

func TestMissingBinary(t *testing.T) {
	cas := New(Options{Bin: "/nonexistent/ipfs-binary"})
	if _, err := cas.Put(testkit.Block(t, "x")); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}

func TestIPFS_Conformance(t *testing.T) {
	bin, err := exec.LookPath("ipfs")
	if err != nil {
		t.Skip("ipfs binary not installed")
	}
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		repo := t.TempDir()
		env := []string{"IPFS_PATH=" + repo, "HOME=" + repo}
		cmd := exec.Command(bin, "init", "--profile=test")
		cmd.Env = env
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Skipf("ipfs init failed: %v: %s", err, out)
		}
		return New(Options{Bin: bin, Env: env})
	})
}
