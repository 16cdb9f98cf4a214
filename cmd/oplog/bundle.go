package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/oplog/cidutil"
	"xdao.co/oplog/storage/bundle"
)

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: oplog bundle <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: export, import")
		return 2
	}
	switch args[0] {
	case "export":
		return cmdBundleExport(args[1:], out, errOut)
	case "import":
		return cmdBundleImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", args[0])
		return 2
	}
}

func cmdBundleExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var store storeFlags
	var outPath, compression string
	var useZstd, noIndex bool
	var labels stringList
	store.add(fs)
	fs.StringVar(&outPath, "out", "", "Bundle file to write ('-' for stdout)")
	fs.StringVar(&compression, "compression", "none", "Bundle compression: none, zstd or lz4")
	fs.BoolVar(&useZstd, "zstd", false, "Shorthand for --compression zstd")
	fs.BoolVar(&noIndex, "no-index", false, "Omit index.json")
	fs.Var(&labels, "label", "name=<hash> label recorded in index.json (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if outPath == "" || fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: oplog bundle export --out <file> [--compression none|zstd|lz4] [--label name=<hash> ...] <hash> [<hash> ...]")
		return 2
	}
	if useZstd {
		compression = string(bundle.CompressionZstd)
	}
	mode, err := bundle.ParseCompression(compression)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ids := make([]cid.Cid, 0, fs.NArg())
	for _, s := range fs.Args() {
		id, err := cidutil.Parse(s)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		ids = append(ids, id)
	}
	labelMap := make(map[string]cid.Cid, len(labels))
	for _, l := range labels {
		name, hash, ok := strings.Cut(l, "=")
		if !ok || name == "" {
			fmt.Fprintf(errOut, "invalid --label %q (want name=<hash>)\n", l)
			return 2
		}
		id, err := cidutil.Parse(hash)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --label %q: %v\n", l, err)
			return 2
		}
		labelMap[name] = id
	}

	cas, closeFn, err := store.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	opts := bundle.ExportOptions{IncludeIndex: !noIndex, Labels: labelMap, Compression: mode}

	var buf bytes.Buffer
	if err := bundle.Export(&buf, cas, ids, opts); err != nil {
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	if outPath == "-" {
		_, _ = out.Write(buf.Bytes())
		return 0
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", filepath.Base(outPath), err)
		return 1
	}
	fmt.Fprintf(out, "Exported %d blocks to %s\n", len(ids), outPath)
	return 0
}

func cmdBundleImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle import", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var store storeFlags
	var ignoreUnknown bool
	store.add(fs)
	fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "Skip unknown bundle entries instead of failing")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: oplog bundle import [--ignore-unknown] <file>")
		return 2
	}

	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return 1
	}
	defer f.Close()

	cas, closeFn, err := store.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	opts := bundle.ImportOptions{
		IgnoreUnknown: ignoreUnknown,
		OnBlock: func(id cid.Cid, _ int) {
			_, _ = fmt.Fprintln(out, cidutil.Format(id))
		},
	}
	if err := bundle.ImportWithOptions(f, cas, opts); err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	return 0
}
