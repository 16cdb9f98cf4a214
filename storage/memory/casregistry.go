package memory

import (
	"xdao.co/oplog/storage"
	"xdao.co/oplog/storage/casregistry"
)

func init() {
	open := func() (storage.CAS, func() error, error) {
		return New(), nil, nil
	}
	casregistry.MustRegister(casregistry.Backend{
		Name:        "memory",
		Description: "In-process CAS (contents are lost on exit)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Open:        open,
		OpenConfig: func(map[string]string) (storage.CAS, func() error, error) {
			return open()
		},
	})
}
