package entry

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
type Kind string

const (
	// KindArgument reports invalid input, raised before any collaborator call.
	KindArgument Kind = "Argument"
	// KindStructure reports an entry that cannot be verified as given.
	KindStructure Kind = "Structure"
	// KindDecryption reports a failed entry-level or payload-level decryption.
	// Messages are fixed and carry no cause.
	KindDecryption Kind = "Decryption"
	// KindProvider reports a failure inside an identity provider or
	// encryption collaborator. The original error is the Cause.
	KindProvider Kind = "Provider"
	// KindCodec reports bytes or values that cannot be canonically encoded
	// or decoded.
	KindCodec Kind = "Codec"
)

// Error is the package's structured error type.
//
// RuleID is a stable identifier (e.g., OPLOG-ARG-002) naming the violated
// rule. Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg + ": " + cause.Error(), Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// Messages of decryption errors. They are stable and deliberately carry no
// detail about why decryption failed.
const (
	msgDecryptEntry   = "Could not decrypt entry"
	msgDecryptPayload = "Could not decrypt payload"
)

func errDecryptEntry() error   { return newError(KindDecryption, "OPLOG-DEC-001", msgDecryptEntry) }
func errDecryptPayload() error { return newError(KindDecryption, "OPLOG-DEC-002", msgDecryptPayload) }
