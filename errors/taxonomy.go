package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Kind discriminates the handful of error categories the runtime's
// external contract distinguishes. Every Kind renders its message with
// a fixed prefix; those prefixes are part of the wire-visible contract
// and must not change.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindInvalidOperation Kind = "invalid_operation"
	KindDeadlock        Kind = "deadlock"
	KindProtocolFailure Kind = "protocol_failure"
	KindCallbackFailure Kind = "callback_failure"
	KindTimeout         Kind = "timeout"
)

var prefixes = map[Kind]string{
	KindInvalidArgument: "Invalid argument: ",
	KindInvalidOperation: "Invalid operation: ",
	KindDeadlock:        "Deadlock: ",
	KindProtocolFailure: "Protocol failure: ",
	KindCallbackFailure: "Callback failure: ",
	KindTimeout:         "Timeout: ",
}

// taxonomyError is the concrete error type produced by the Kind
// constructors below. It carries a cockroachdb/errors domain so Is/As
// and hint/detail propagation keep working across Wrap boundaries.
type taxonomyError struct {
	kind error // cockroachdb domain-tagged sentinel, used for Is() matching
	k    Kind
	msg  string
}

func (e *taxonomyError) Error() string {
	return prefixes[e.k] + e.msg
}

func (e *taxonomyError) Unwrap() error {
	return e.kind
}

var domainSentinels = func() map[Kind]error {
	m := make(map[Kind]error, len(prefixes))
	for k := range prefixes {
		m[k] = crdb.WithDomain(crdb.New(string(k)), crdb.Domain(k))
	}
	return m
}()

func newTaxonomy(k Kind, format string, args ...interface{}) error {
	return &taxonomyError{
		kind: domainSentinels[k],
		k:    k,
		msg:  fmt.Sprintf(format, args...),
	}
}

// InvalidArgument reports a malformed handle, bad index, unknown plugin
// name, bad matrix, duplicate membership, empty metadata string, or
// invalid log level.
func InvalidArgument(format string, args ...interface{}) error {
	return newTaxonomy(KindInvalidArgument, format, args...)
}

// InvalidOperation reports a framework call made in the wrong state,
// e.g. wait without start, start while already running, or a callback
// not supported for the plugin's type.
func InvalidOperation(format string, args ...interface{}) error {
	return newTaxonomy(KindInvalidOperation, format, args...)
}

// DeadlockError reports a mutual block between the host and the
// frontend's run callback.
func DeadlockError(format string, args ...interface{}) error {
	return newTaxonomy(KindDeadlock, format, args...)
}

// ProtocolFailure reports a wire-format error, an unexpected plugin
// type, or a lost connection.
func ProtocolFailure(format string, args ...interface{}) error {
	return newTaxonomy(KindProtocolFailure, format, args...)
}

// CallbackFailure wraps an error returned by a user callback, keeping
// its message verbatim as the contract requires.
func CallbackFailure(cause error) error {
	if cause == nil {
		return nil
	}
	return newTaxonomy(KindCallbackFailure, "%s", cause.Error())
}

// TimeoutError reports an accept or shutdown timeout expiring.
func TimeoutError(format string, args ...interface{}) error {
	return newTaxonomy(KindTimeout, format, args...)
}

// LeakCheck reports that a handle table still owns n handles.
func LeakCheck(n int, detail string) error {
	return crdb.Newf("Leak check: %d handles remain, %s", n, detail)
}

// KindOf returns the Kind tag of err if it (or something it wraps) was
// produced by one of this package's constructors, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var te *taxonomyError
	if crdb.As(err, &te) {
		return te.k, true
	}
	return "", false
}

// IsKind reports whether err was produced with the given Kind.
func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}

// MessageOf returns the bare message of err (without its Kind prefix)
// when err was produced by one of this package's constructors.
func MessageOf(err error) (string, bool) {
	var te *taxonomyError
	if crdb.As(err, &te) {
		return te.msg, true
	}
	return "", false
}

// ByKind reconstructs an error of the given Kind from a bare message,
// used to rebuild a taxonomy error on the far side of a process
// boundary after only the (kind, message) pair survived serialization.
// An unknown or empty kind falls back to a plain error carrying msg
// and no Kind.
func ByKind(k Kind, msg string) error {
	if _, ok := prefixes[k]; !ok {
		return crdb.Newf("%s", msg)
	}
	return newTaxonomy(k, "%s", msg)
}
