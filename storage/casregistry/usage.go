package casregistry

// Usage says which kinds of program accept a backend.
type Usage uint8

const (
	// UsageCLI marks backends offered by the oplog CLI.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends the CAS daemon can serve.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
