package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"xdao.co/oplog/entry"
	"xdao.co/oplog/keys"
	"xdao.co/oplog/sealed"
	"xdao.co/oplog/storage"
	"xdao.co/oplog/storage/casconfig"
	"xdao.co/oplog/storage/casregistry"

	_ "xdao.co/oplog/storage/grpccas"
	_ "xdao.co/oplog/storage/ipfs"
	_ "xdao.co/oplog/storage/localfs"
	_ "xdao.co/oplog/storage/memory"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// storeFlags selects a CAS, from registered backend flags or a JSON config.
type storeFlags struct {
	backend   string
	casConfig string
	prefer    string
}

func (c *storeFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "CAS backend name")
	fs.StringVar(&c.casConfig, "cas-config", "", "JSON or YAML CAS config file (overrides --backend)")
	fs.StringVar(&c.prefer, "prefer", "", "Backend from --cas-config to write to first")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *storeFlags) open() (storage.CAS, func() error, error) {
	if c.casConfig != "" {
		cfg, err := casconfig.LoadFile(c.casConfig)
		if err != nil {
			return nil, nil, err
		}
		return cfg.Open(casregistry.UsageCLI, c.prefer)
	}
	return casregistry.Open(c.backend, casregistry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

// signerFlags picks the seed an entry is signed with.
type signerFlags struct {
	seedHex string
	name    string
	role    string
	keyFile string
	keysDir string
}

func (s *signerFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&s.seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	fs.StringVar(&s.name, "signer", "", "Key store name to sign with")
	fs.StringVar(&s.role, "signer-role", "", "Derived role of --signer to sign with")
	fs.StringVar(&s.keyFile, "key-file", "", "File holding a hex ed25519 seed")
	addKeysDirFlag(fs, &s.keysDir)
}

// label is the identity id recorded for the signer.
func (s *signerFlags) label() string {
	switch {
	case s.seedHex != "" || s.keyFile != "":
		return ""
	case s.role != "":
		return s.name + "/" + s.role
	default:
		return s.name
	}
}

func addKeysDirFlag(fs *flag.FlagSet, dir *string) {
	fs.StringVar(dir, "keys-dir", os.Getenv("OPLOG_KEYS_DIR"), "Key store directory (default ~/.oplog/keys)")
}

func openKeyStore(dir string) (*keys.KeyStore, error) {
	return keys.OpenKeyStore(dir)
}

// cryptoFlags configures the optional entry-level and payload-level
// encryption layers.
type cryptoFlags struct {
	entryKeyHex     string
	ageRecipients   stringList
	ageIdentityFile string
	payloadKeyHex   string
}

func (c *cryptoFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.entryKeyHex, "entry-key-hex", "", "XChaCha20-Poly1305 key (64 hex) sealing the whole entry")
	fs.Var(&c.ageRecipients, "entry-age-recipient", "age recipient sealing the whole entry (repeatable)")
	fs.StringVar(&c.ageIdentityFile, "entry-age-identity", "", "age identity file opening sealed entries")
	fs.StringVar(&c.payloadKeyHex, "payload-key-hex", "", "XChaCha20-Poly1305 key (64 hex) sealing the payload")
}

var errConflictingEntryKeys = errors.New("--entry-key-hex cannot be combined with age flags")

func parseAEADKey(flagName, s string) (*sealed.AEAD, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flagName, err)
	}
	a, err := sealed.NewAEAD(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flagName, err)
	}
	return a, nil
}

func (c *cryptoFlags) payloadAEAD() (*sealed.AEAD, error) {
	if c.payloadKeyHex == "" {
		return nil, nil
	}
	return parseAEADKey("payload-key-hex", c.payloadKeyHex)
}

func (c *cryptoFlags) encodeOptions() (entry.EncodeOptions, error) {
	var opts entry.EncodeOptions
	if c.entryKeyHex != "" && len(c.ageRecipients) > 0 {
		return opts, errConflictingEntryKeys
	}
	switch {
	case c.entryKeyHex != "":
		a, err := parseAEADKey("entry-key-hex", c.entryKeyHex)
		if err != nil {
			return opts, err
		}
		opts.EncryptEntry = a
	case len(c.ageRecipients) > 0:
		a, err := sealed.NewAge(c.ageRecipients, nil)
		if err != nil {
			return opts, err
		}
		opts.EncryptEntry = a
	}
	p, err := c.payloadAEAD()
	if err != nil {
		return opts, err
	}
	if p != nil {
		opts.EncryptPayload = p
	}
	return opts, nil
}

func (c *cryptoFlags) decodeOptions() (entry.DecodeOptions, error) {
	var opts entry.DecodeOptions
	if c.entryKeyHex != "" && c.ageIdentityFile != "" {
		return opts, errConflictingEntryKeys
	}
	switch {
	case c.entryKeyHex != "":
		a, err := parseAEADKey("entry-key-hex", c.entryKeyHex)
		if err != nil {
			return opts, err
		}
		opts.DecryptEntry = a
	case c.ageIdentityFile != "":
		ids, err := readAgeIdentities(c.ageIdentityFile)
		if err != nil {
			return opts, err
		}
		a, err := sealed.NewAge(nil, ids)
		if err != nil {
			return opts, err
		}
		opts.DecryptEntry = a
	}
	p, err := c.payloadAEAD()
	if err != nil {
		return opts, err
	}
	if p != nil {
		opts.DecryptPayload = p
	}
	return opts, nil
}

// readAgeIdentities returns the AGE-SECRET-KEY lines of an identity file,
// skipping blanks and # comments.
func readAgeIdentities(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no age identities in %s", path)
	}
	return out, nil
}
