package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"xdao.co/oplog/cidutil"
	"xdao.co/oplog/storage"
)

// cmdBlock moves raw dag-cbor blocks in and out of a CAS without
// decoding them as entries.
func cmdBlock(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: oplog block <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get, has")
		return 2
	}
	switch args[0] {
	case "put":
		return cmdBlockPut(args[1:], out, errOut)
	case "get":
		return cmdBlockGet(args[1:], out, errOut)
	case "has":
		return cmdBlockHas(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown block subcommand: %s\n", args[0])
		return 2
	}
}

func cmdBlockPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("block put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var store storeFlags
	store.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: oplog block put [storage flags] <file>")
		return 2
	}

	p := fs.Arg(0)
	b, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}

	cas, closeFn, err := store.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	id, err := cas.Put(b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, cidutil.Format(id))
	return 0
}

func cmdBlockGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("block get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var store storeFlags
	var hash, outPath string
	store.add(fs)
	fs.StringVar(&hash, "hash", "", "Block hash to fetch")
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if hash == "" || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: oplog block get [storage flags] --hash <hash> [--out <file>]")
		return 2
	}
	id, err := cidutil.Parse(hash)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return 2
	}

	cas, closeFn, err := store.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	b, err := cas.Get(id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	if outPath == "" {
		_, _ = out.Write(b)
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", filepath.Base(outPath), err)
		return 1
	}
	return 0
}

// cmdBlockHas exits 0 when the block is present and 1 when it is not.
func cmdBlockHas(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("block has", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var store storeFlags
	store.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: oplog block has [storage flags] <hash>")
		return 2
	}
	id, err := cidutil.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return 2
	}

	cas, closeFn, err := store.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	if !cas.Has(id) {
		_, _ = fmt.Fprintln(out, "missing")
		return 1
	}
	_, _ = fmt.Fprintln(out, "present")
	return 0
}
