package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"xdao.co/oplog/clock"
	"xdao.co/oplog/entry"
	"xdao.co/oplog/entrystore"
	"xdao.co/oplog/identity"
)

func cmdEntry(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: oplog entry <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: create, show, verify, hash")
		return 2
	}
	switch args[0] {
	case "create":
		return cmdEntryCreate(args[1:], out, errOut)
	case "show":
		return cmdEntryShow(args[1:], out, errOut)
	case "verify":
		return cmdEntryVerify(args[1:], out, errOut)
	case "hash":
		return cmdEntryHash(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown entry subcommand: %s\n", args[0])
		return 2
	}
}

func cmdEntryCreate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("entry create", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var signer signerFlags
	var crypto cryptoFlags
	var store storeFlags
	var logID, payloadText, payloadJSON, payloadFile, outPath string
	var next, refs stringList
	var clockTime uint64
	var doStore bool

	signer.add(fs)
	crypto.add(fs)
	store.add(fs)
	fs.StringVar(&logID, "log", "", "Log id the entry belongs to")
	fs.StringVar(&payloadText, "payload", "", "Payload as a text string")
	fs.StringVar(&payloadJSON, "payload-json", "", "Payload as a JSON value")
	fs.StringVar(&payloadFile, "payload-file", "", "Payload as raw bytes read from a file")
	fs.Var(&next, "next", "Hash of a causal predecessor (repeatable, order preserved)")
	fs.Var(&refs, "ref", "Hash of a further ancestor (repeatable)")
	fs.Uint64Var(&clockTime, "clock-time", 0, "Logical clock time (clock id is the signer's public key)")
	fs.StringVar(&outPath, "out", "", "Write the encoded entry to this file ('-' for stdout)")
	fs.BoolVar(&doStore, "store", false, "Store the encoded entry in the selected CAS")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if logID == "" {
		fmt.Fprintln(errOut, "missing --log")
		return 2
	}
	payload, err := readPayload(payloadText, payloadJSON, payloadFile)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ks, err := openKeyStore(signer.keysDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	seed, err := ks.LoadSeed(signer.seedHex, signer.name, signer.role, signer.keyFile)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}
	author, err := identity.FromSeed(signer.label(), seed)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 1
	}

	encodeOpts, err := crypto.encodeOptions()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ctx := context.Background()
	createOpts := entry.CreateOptions{
		EncryptPayload: encodeOpts.EncryptPayload,
		Next:           next,
		Refs:           refs,
	}
	if clockTime > 0 {
		c := clock.At(author.PublicKey, clockTime)
		createOpts.Clock = &c
	}
	e, err := entry.Create(ctx, identity.Provider{}, author, logID, payload, createOpts)
	if err != nil {
		fmt.Fprintf(errOut, "create entry: %v\n", err)
		return 1
	}
	block, err := entry.Encode(ctx, e, encodeOpts)
	if err != nil {
		fmt.Fprintf(errOut, "encode entry: %v\n", err)
		return 1
	}

	if doStore {
		cas, closeFn, err := store.open()
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		if closeFn != nil {
			defer closeFn()
		}
		s := &entrystore.Store{CAS: cas, EncodeOptions: encodeOpts}
		if _, err := s.Put(ctx, e); err != nil {
			fmt.Fprintf(errOut, "store entry: %v\n", err)
			return 1
		}
	}

	switch outPath {
	case "":
	case "-":
		_, _ = out.Write(block.Bytes)
		return 0
	default:
		if err := os.WriteFile(outPath, block.Bytes, 0o644); err != nil {
			fmt.Fprintf(errOut, "write %s: %v\n", filepath.Base(outPath), err)
			return 1
		}
	}
	_, _ = fmt.Fprintln(out, block.Hash)
	return 0
}

func readPayload(text, jsonText, file string) (any, error) {
	set := 0
	for _, s := range []string{text, jsonText, file} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of --payload, --payload-json, --payload-file is required")
	}
	switch {
	case text != "":
		return text, nil
	case jsonText != "":
		return decodeJSONPayload(jsonText)
	default:
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(file), err)
		}
		return b, nil
	}
}

// decodeJSONPayload keeps integers as integers; encoding/json would turn
// them into float64 and change the canonical bytes.
func decodeJSONPayload(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid --payload-json: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid --payload-json: trailing data")
	}
	return normalizeJSON(v), nil
}

func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = normalizeJSON(t[i])
		}
		return t
	case map[string]any:
		for k, x := range t {
			t[k] = normalizeJSON(x)
		}
		return t
	default:
		return v
	}
}

// sourceFlags locate an existing entry: a positional file or --hash in a CAS.
type sourceFlags struct {
	hash   string
	crypto cryptoFlags
	store  storeFlags
}

func (s *sourceFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&s.hash, "hash", "", "Load the entry with this hash from the selected CAS")
	s.crypto.add(fs)
	s.store.add(fs)
}

// load decodes the entry named by the flags. It returns a usage error
// (exit 2) or a runtime error (exit 1).
func (s *sourceFlags) load(ctx context.Context, fs *flag.FlagSet, usage string, errOut io.Writer) (*entry.Entry, int) {
	if (s.hash == "") == (fs.NArg() != 1) || fs.NArg() > 1 {
		fmt.Fprintln(errOut, usage)
		return nil, 2
	}
	decodeOpts, err := s.crypto.decodeOptions()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return nil, 2
	}

	if s.hash != "" {
		cas, closeFn, err := s.store.open()
		if err != nil {
			fmt.Fprintln(errOut, err)
			return nil, 1
		}
		if closeFn != nil {
			defer closeFn()
		}
		st := &entrystore.Store{CAS: cas, DecodeOptions: decodeOpts}
		e, err := st.Get(ctx, s.hash)
		if err != nil {
			fmt.Fprintf(errOut, "load entry: %v\n", err)
			return nil, 1
		}
		return e, 0
	}

	path := fs.Arg(0)
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return nil, 1
	}
	e, err := entry.Decode(ctx, b, decodeOpts)
	if err != nil {
		fmt.Fprintf(errOut, "decode entry: %v\n", err)
		return nil, 1
	}
	return e, 0
}

type clockView struct {
	ID   string `json:"id"`
	Time uint64 `json:"time"`
}

type entryView struct {
	Hash             string    `json:"hash"`
	ID               string    `json:"id"`
	Payload          any       `json:"payload"`
	PayloadEncrypted bool      `json:"payloadEncrypted,omitempty"`
	Next             []string  `json:"next"`
	Refs             []string  `json:"refs"`
	Clock            clockView `json:"clock"`
	V                int       `json:"v"`
	Key              string    `json:"key"`
	Identity         string    `json:"identity"`
	Sig              string    `json:"sig"`
}

func viewOf(e *entry.Entry) entryView {
	return entryView{
		Hash:             e.Hash,
		ID:               e.ID,
		Payload:          e.Payload,
		PayloadEncrypted: e.EncryptedPayload != nil,
		Next:             e.Next,
		Refs:             e.Refs,
		Clock:            clockView{ID: e.Clock.ID, Time: e.Clock.Time},
		V:                e.V,
		Key:              e.Key,
		Identity:         e.Identity,
		Sig:              e.Sig,
	}
}

func cmdEntryShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("entry show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var src sourceFlags
	src.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	e, code := src.load(context.Background(), fs, "usage: oplog entry show (<file> | --hash <hash>)", errOut)
	if e == nil {
		return code
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(viewOf(e)); err != nil {
		fmt.Fprintf(errOut, "render entry: %v\n", err)
		return 1
	}
	return 0
}

func cmdEntryVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("entry verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var src sourceFlags
	src.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ctx := context.Background()
	e, code := src.load(ctx, fs, "usage: oplog entry verify (<file> | --hash <hash>)", errOut)
	if e == nil {
		return code
	}
	ok, err := entry.Verify(ctx, identity.Provider{}, e)
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}
	if !ok {
		_, _ = fmt.Fprintln(out, "INVALID")
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdEntryHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("entry hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: oplog entry hash <file>")
		return 2
	}
	path := fs.Arg(0)
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return 1
	}
	_, _ = fmt.Fprintln(out, entry.HashOf(b))
	return 0
}
