package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "entry":
		return cmdEntry(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "block":
		return cmdBlock(args[1:], out, errOut)
	case "backends":
		printBackends(out)
		return 0
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "oplog: signed, content-addressed operation log entries")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  oplog key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  oplog key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  oplog key list")
	fmt.Fprintln(w, "  oplog key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  oplog key age-keygen")
	fmt.Fprintln(w, "  oplog entry create --log <id> (--seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>)")
	fmt.Fprintln(w, "                     (--payload <text> | --payload-json <json> | --payload-file <path>)")
	fmt.Fprintln(w, "                     [--next <hash> ...] [--ref <hash> ...] [--clock-time <n>] [--out <file>|-] [--store]")
	fmt.Fprintln(w, "  oplog entry show (<file> | --hash <hash>)")
	fmt.Fprintln(w, "  oplog entry verify (<file> | --hash <hash>)")
	fmt.Fprintln(w, "  oplog entry hash <file>")
	fmt.Fprintln(w, "  oplog bundle export --out <file> [--compression none|zstd|lz4] [--label name=<hash> ...] <hash> [<hash> ...]")
	fmt.Fprintln(w, "  oplog bundle import [--ignore-unknown] <file>")
	fmt.Fprintln(w, "  oplog block put <file> | get --hash <hash> [--out <file>] | has <hash>")
	fmt.Fprintln(w, "  oplog backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Storage flags (entry --store/--hash, bundle, block):")
	fmt.Fprintln(w, "  --backend <name> plus that backend's flags (see 'oplog backends'), or --cas-config <file.json|file.yaml>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Encryption flags (entry):")
	fmt.Fprintln(w, "  --entry-key-hex <64hex>        XChaCha20-Poly1305 key for the whole entry")
	fmt.Fprintln(w, "  --entry-age-recipient <age1..> age recipient for the whole entry (repeatable)")
	fmt.Fprintln(w, "  --entry-age-identity <file>    age identity file to open sealed entries")
	fmt.Fprintln(w, "  --payload-key-hex <64hex>      XChaCha20-Poly1305 key for the payload only")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - keys are stored under ~/.oplog/keys/<name> unless --keys-dir or OPLOG_KEYS_DIR is set")
	fmt.Fprintln(w, "  - entry create prints the entry hash; --out - writes the encoded entry to stdout instead")
	fmt.Fprintln(w, "  - entry verify exits 0 when the signature is valid and 1 otherwise")
}
