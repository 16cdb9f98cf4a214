package ipfs

import (
	"flag"
	"os"
	"strconv"

	"xdao.co/oplog/storage"
	"xdao.co/oplog/storage/casregistry"
)

var (
	flagBin  string
	flagPath string
	flagPin  bool
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Local IPFS repo via the Kubo CLI (offline)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "ipfs", "Path to the ipfs binary (for --backend=ipfs)")
			fs.StringVar(&flagPath, "ipfs-path", "", "IPFS_PATH of the repo; empty uses the environment (for --backend=ipfs)")
			fs.BoolVar(&flagPin, "ipfs-pin", false, "Pin written blocks (for --backend=ipfs)")
		},
		Open: func() (storage.CAS, func() error, error) {
			return open(flagBin, flagPath, flagPin), nil, nil
		},
		OpenConfig: func(config map[string]string) (storage.CAS, func() error, error) {
			pin := false
			if v := config["pin"]; v != "" {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return nil, nil, err
				}
				pin = b
			}
			return open(config["ipfs-bin"], config["ipfs-path"], pin), nil, nil
		},
	})
}

func open(bin, repoPath string, pin bool) *CAS {
	var env []string
	if repoPath != "" {
		env = append(os.Environ(), "IPFS_PATH="+repoPath)
	}
	return New(Options{Bin: bin, Env: env, Pin: pin})
}
