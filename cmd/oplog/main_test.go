package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/oplog/cidutil"
)

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, code := runCLI(t, args...)
	if code != 0 {
		t.Fatalf("oplog %s: exit %d\nstderr: %s", strings.Join(args, " "), code, errOut)
	}
	return out
}

var testSeedHex = strings.Repeat("01", 32)

func TestUsageErrors(t *testing.T) {
	if _, _, code := runCLI(t); code != 2 {
		t.Fatalf("no args: exit %d, want 2", code)
	}
	if _, _, code := runCLI(t, "frobnicate"); code != 2 {
		t.Fatalf("unknown command: exit %d, want 2", code)
	}
	if _, _, code := runCLI(t, "entry", "create", "--payload", "x", "--seed-hex", testSeedHex); code != 2 {
		t.Fatalf("missing --log: exit %d, want 2", code)
	}
	if _, _, code := runCLI(t, "entry", "create", "--log", "l", "--seed-hex", testSeedHex); code != 2 {
		t.Fatalf("missing payload: exit %d, want 2", code)
	}
	if out, _, code := runCLI(t, "help"); code != 0 || !strings.Contains(out, "oplog entry create") {
		t.Fatalf("help: exit %d out %q", code, out)
	}
}

func TestKeyCommands(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, "key", "init", "--name", "alice", "--seed-hex", testSeedHex, "--keys-dir", dir)
	if !strings.Contains(out, "Created root key: ed25519:") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, _, code := runCLI(t, "key", "init", "--name", "alice", "--keys-dir", dir); code != 1 {
		t.Fatalf("re-init without --force: exit %d, want 1", code)
	}
	mustRun(t, "key", "derive", "--from", "alice", "--role", "writer", "--keys-dir", dir)

	list := mustRun(t, "key", "list", "--keys-dir", dir)
	if list != "alice\n  - writer\n" {
		t.Fatalf("unexpected list output: %q", list)
	}

	root := strings.TrimSpace(mustRun(t, "key", "export", "--name", "alice", "--keys-dir", dir))
	role := strings.TrimSpace(mustRun(t, "key", "export", "--name", "alice", "--role", "writer", "--keys-dir", dir))
	if !strings.HasPrefix(root, "ed25519:") || root == role {
		t.Fatalf("unexpected exported keys: root=%q role=%q", root, role)
	}

	if _, _, code := runCLI(t, "key", "init", "--name", "bad name", "--keys-dir", dir); code != 2 {
		t.Fatalf("invalid name: exit %d, want 2", code)
	}

	age := mustRun(t, "key", "age-keygen")
	if !strings.Contains(age, "# public key: age1") || !strings.Contains(age, "AGE-SECRET-KEY-1") {
		t.Fatalf("unexpected age-keygen output: %q", age)
	}
}

func TestEntryFileWorkflow(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "e1.cbor")

	hash := strings.TrimSpace(mustRun(t, "entry", "create", "--log", "log1", "--seed-hex", testSeedHex, "--payload", "hello", "--out", file))
	if !strings.HasPrefix(hash, cidutil.HashPrefix) {
		t.Fatalf("hash %q missing prefix", hash)
	}
	if got := strings.TrimSpace(mustRun(t, "entry", "hash", file)); got != hash {
		t.Fatalf("entry hash = %s, want %s", got, hash)
	}
	if out := mustRun(t, "entry", "verify", file); strings.TrimSpace(out) != "OK" {
		t.Fatalf("verify output %q", out)
	}

	var view map[string]any
	if err := json.Unmarshal([]byte(mustRun(t, "entry", "show", file)), &view); err != nil {
		t.Fatalf("show output is not JSON: %v", err)
	}
	if view["payload"] != "hello" || view["hash"] != hash || view["v"] != float64(2) {
		t.Fatalf("unexpected view: %v", view)
	}

	child := strings.TrimSpace(mustRun(t, "entry", "create", "--log", "log1", "--seed-hex", testSeedHex,
		"--payload-json", `{"op":"PUT","key":"k","count":3}`, "--next", hash, "--clock-time", "1",
		"--out", filepath.Join(dir, "e2.cbor")))
	if child == hash {
		t.Fatalf("child entry reused parent hash")
	}
	if err := json.Unmarshal([]byte(mustRun(t, "entry", "show", filepath.Join(dir, "e2.cbor"))), &view); err != nil {
		t.Fatal(err)
	}
	if next, _ := view["next"].([]any); len(next) != 1 || next[0] != hash {
		t.Fatalf("unexpected next: %v", view["next"])
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	tampered := filepath.Join(dir, "tampered.cbor")
	if err := os.WriteFile(tampered, bytes.Replace(raw, []byte("hello"), []byte("jello"), 1), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, code := runCLI(t, "entry", "verify", tampered)
	if code != 1 || strings.TrimSpace(out) != "INVALID" {
		t.Fatalf("tampered verify: exit %d out %q", code, out)
	}
}

func TestEntrySignerFromKeyStore(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, "key", "init", "--name", "bob", "--keys-dir", dir)
	mustRun(t, "key", "derive", "--from", "bob", "--role", "writer", "--keys-dir", dir)
	key := strings.TrimSpace(mustRun(t, "key", "export", "--name", "bob", "--role", "writer", "--keys-dir", dir))

	file := filepath.Join(dir, "e.cbor")
	mustRun(t, "entry", "create", "--log", "l", "--signer", "bob", "--signer-role", "writer", "--keys-dir", dir, "--payload", "x", "--out", file)

	var view map[string]any
	if err := json.Unmarshal([]byte(mustRun(t, "entry", "show", file)), &view); err != nil {
		t.Fatal(err)
	}
	if view["key"] != key {
		t.Fatalf("entry key = %v, want %s", view["key"], key)
	}
	if _, _, code := runCLI(t, "entry", "create", "--log", "l", "--payload", "x", "--keys-dir", dir); code != 2 {
		t.Fatalf("missing signer: exit %d, want 2", code)
	}
}

func TestEntryStoreAndBundle(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	h1 := strings.TrimSpace(mustRun(t, "entry", "create", "--log", "log1", "--seed-hex", testSeedHex, "--payload", "one",
		"--store", "--backend", "localfs", "--localfs-dir", src))
	h2 := strings.TrimSpace(mustRun(t, "entry", "create", "--log", "log1", "--seed-hex", testSeedHex, "--payload", "two", "--next", h1,
		"--store", "--backend", "localfs", "--localfs-dir", src))

	if out := mustRun(t, "entry", "verify", "--hash", h2, "--backend", "localfs", "--localfs-dir", src); strings.TrimSpace(out) != "OK" {
		t.Fatalf("verify --hash output %q", out)
	}

	bundlePath := filepath.Join(dir, "log.tar.zst")
	mustRun(t, "bundle", "export", "--out", bundlePath, "--zstd", "--label", "head="+h2,
		"--backend", "localfs", "--localfs-dir", src, h1, h2)
	lz4Path := filepath.Join(dir, "log.tar.lz4")
	mustRun(t, "bundle", "export", "--out", lz4Path, "--compression", "lz4",
		"--backend", "localfs", "--localfs-dir", src, h1)
	if out := mustRun(t, "bundle", "import", "--backend", "localfs", "--localfs-dir", filepath.Join(dir, "lz4"), lz4Path); strings.TrimSpace(out) != h1 {
		t.Fatalf("lz4 import output %q", out)
	}
	if _, _, code := runCLI(t, "bundle", "export", "--out", lz4Path, "--compression", "gzip",
		"--backend", "localfs", "--localfs-dir", src, h1); code != 2 {
		t.Fatalf("unknown compression: exit %d, want 2", code)
	}

	imported := mustRun(t, "bundle", "import", "--backend", "localfs", "--localfs-dir", dst, bundlePath)
	for _, h := range []string{h1, h2} {
		if !strings.Contains(imported, h) {
			t.Fatalf("import output %q missing %s", imported, h)
		}
	}

	var view map[string]any
	if err := json.Unmarshal([]byte(mustRun(t, "entry", "show", "--hash", h2, "--backend", "localfs", "--localfs-dir", dst)), &view); err != nil {
		t.Fatal(err)
	}
	if view["payload"] != "two" {
		t.Fatalf("unexpected payload after import: %v", view["payload"])
	}

	if _, _, code := runCLI(t, "entry", "show", "--hash", h2, "--backend", "localfs", "--localfs-dir", filepath.Join(dir, "empty")); code != 1 {
		t.Fatalf("missing entry: exit %d, want 1", code)
	}
}

func TestEntryEncryption(t *testing.T) {
	dir := t.TempDir()
	entryKey := strings.Repeat("ab", 32)
	payloadKey := strings.Repeat("cd", 32)

	sealedFile := filepath.Join(dir, "sealed.cbor")
	mustRun(t, "entry", "create", "--log", "l", "--seed-hex", testSeedHex, "--payload", "secret",
		"--entry-key-hex", entryKey, "--out", sealedFile)
	_, errOut, code := runCLI(t, "entry", "show", sealedFile)
	if code != 1 || !strings.Contains(errOut, "Could not decrypt entry") {
		t.Fatalf("show without key: exit %d stderr %q", code, errOut)
	}
	if out := mustRun(t, "entry", "verify", "--entry-key-hex", entryKey, sealedFile); strings.TrimSpace(out) != "OK" {
		t.Fatalf("verify sealed: %q", out)
	}

	payloadFile := filepath.Join(dir, "payload.cbor")
	mustRun(t, "entry", "create", "--log", "l", "--seed-hex", testSeedHex, "--payload", "secret",
		"--payload-key-hex", payloadKey, "--out", payloadFile)
	raw, err := os.ReadFile(payloadFile)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("secret")) {
		t.Fatalf("payload plaintext leaked")
	}
	var view map[string]any
	if err := json.Unmarshal([]byte(mustRun(t, "entry", "show", "--payload-key-hex", payloadKey, payloadFile)), &view); err != nil {
		t.Fatal(err)
	}
	if view["payload"] != "secret" || view["payloadEncrypted"] != true {
		t.Fatalf("unexpected decrypted view: %v", view)
	}
	if out := mustRun(t, "entry", "verify", payloadFile); strings.TrimSpace(out) != "OK" {
		t.Fatalf("verify without payload key: %q", out)
	}

	ageOut := mustRun(t, "key", "age-keygen")
	var recipient string
	for _, line := range strings.Split(ageOut, "\n") {
		if strings.HasPrefix(line, "# public key: ") {
			recipient = strings.TrimPrefix(line, "# public key: ")
		}
	}
	identityFile := filepath.Join(dir, "age.txt")
	if err := os.WriteFile(identityFile, []byte(ageOut), 0o600); err != nil {
		t.Fatal(err)
	}
	ageFile := filepath.Join(dir, "age.cbor")
	mustRun(t, "entry", "create", "--log", "l", "--seed-hex", testSeedHex, "--payload", "to-age",
		"--entry-age-recipient", recipient, "--out", ageFile)
	if err := json.Unmarshal([]byte(mustRun(t, "entry", "show", "--entry-age-identity", identityFile, ageFile)), &view); err != nil {
		t.Fatal(err)
	}
	if view["payload"] != "to-age" {
		t.Fatalf("unexpected age payload: %v", view["payload"])
	}
}

func TestBlockCommands(t *testing.T) {
	dir := t.TempDir()
	casDir := filepath.Join(dir, "cas")
	file := filepath.Join(dir, "e.cbor")
	hash := strings.TrimSpace(mustRun(t, "entry", "create", "--log", "l", "--seed-hex", testSeedHex, "--payload", "raw", "--out", file))

	if _, _, code := runCLI(t, "block", "has", "--backend", "localfs", "--localfs-dir", casDir, hash); code != 1 {
		t.Fatalf("has before put: exit %d, want 1", code)
	}
	if got := strings.TrimSpace(mustRun(t, "block", "put", "--backend", "localfs", "--localfs-dir", casDir, file)); got != hash {
		t.Fatalf("block put = %s, want %s", got, hash)
	}
	if out := mustRun(t, "block", "has", "--backend", "localfs", "--localfs-dir", casDir, hash); strings.TrimSpace(out) != "present" {
		t.Fatalf("has output %q", out)
	}

	want, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	got := mustRun(t, "block", "get", "--backend", "localfs", "--localfs-dir", casDir, "--hash", hash)
	if got != string(want) {
		t.Fatalf("block get returned different bytes")
	}
	if _, _, code := runCLI(t, "block", "get", "--backend", "localfs", "--localfs-dir", casDir, "--hash", "not-a-cid"); code != 2 {
		t.Fatalf("invalid hash: exit %d, want 2", code)
	}
}
