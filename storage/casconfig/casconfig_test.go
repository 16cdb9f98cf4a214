package casconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"xdao.co/oplog/storage"
	"xdao.co/oplog/storage/casconfig"
	"xdao.co/oplog/storage/casregistry"
	_ "xdao.co/oplog/storage/localfs"
	_ "xdao.co/oplog/storage/memory"
	"xdao.co/oplog/storage/testkit"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  casconfig.Config
		ok   bool
	}{
		{"empty", casconfig.Config{}, false},
		{"unnamed", casconfig.Config{Backends: []casconfig.BackendConfig{{}}}, false},
		{"duplicate", casconfig.Config{Backends: []casconfig.BackendConfig{{Name: "memory"}, {Name: "memory"}}}, false},
		{"aliased", casconfig.Config{Backends: []casconfig.BackendConfig{{Name: "memory"}, {Name: "memory", ID: "m2"}}}, true},
		{"bad policy", casconfig.Config{WritePolicy: "some", Backends: []casconfig.BackendConfig{{Name: "memory"}}}, false},
	}
	for _, tt := range tests {
		err := tt.cfg.Validate()
		if (err == nil) != tt.ok {
			t.Fatalf("%s: Validate() = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}

func TestLoadFileAndOpenReplicating(t *testing.T) {
	dir := t.TempDir()
	casDir := filepath.Join(dir, "cas")
	path := filepath.Join(dir, "cas.json")
	doc := `{
  // write every block to both backends
  "write_policy": "all",
  "backends": [
    {"name": "memory"},
    /* on-disk copy */
    {"name": "localfs", "id": "disk", "config": {"localfs-dir": "` + filepath.ToSlash(casDir) + `"}},
  ],
}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := casconfig.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	rep, ok := cas.(storage.ReplicatingCAS)
	if !ok {
		t.Fatalf("expected ReplicatingCAS, got %T", cas)
	}
	id, perBackend, err := rep.PutAll(testkit.Block(t, "replicated"))
	if err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if len(perBackend) != 2 || !perBackend["disk"].Equals(id) || !perBackend["memory"].Equals(id) {
		t.Fatalf("unexpected per-backend CIDs: %v", perBackend)
	}
}

func TestOpenPreferredBackendFirst(t *testing.T) {
	casDir := t.TempDir()
	cfg := casconfig.Config{Backends: []casconfig.BackendConfig{
		{Name: "memory"},
		{Name: "localfs", Config: map[string]string{"localfs-dir": casDir}},
	}}
	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "localfs")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	multi, ok := cas.(storage.MultiCAS)
	if !ok {
		t.Fatalf("expected MultiCAS, got %T", cas)
	}
	id, err := multi.Put(testkit.Block(t, "preferred"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !multi.Adapters[0].Has(id) || multi.Adapters[1].Has(id) {
		t.Fatalf("write did not go to the preferred backend only")
	}

	if _, _, err := cfg.Open(casregistry.UsageCLI, "absent"); err == nil {
		t.Fatalf("expected error for unknown preferred backend")
	}
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cas.yaml")
	doc := `write_policy: first
backends:
  - name: localfs
    id: primary
    config:
      localfs-dir: ` + filepath.ToSlash(filepath.Join(dir, "cas")) + `
  - name: memory
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := casconfig.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.WritePolicy != "first" || len(cfg.Backends) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if b := cfg.Backends[0]; b.Name != "localfs" || b.ID != "primary" || b.Config["localfs-dir"] == "" {
		t.Fatalf("unexpected first backend: %+v", b)
	}

	bad := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(bad, []byte("backends: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := casconfig.LoadFile(bad); err == nil {
		t.Fatalf("expected parse error for malformed YAML")
	}
}
