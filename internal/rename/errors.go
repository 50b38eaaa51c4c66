package rename

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aidanlsb/chronos/internal/uid"
)

// Kind categorizes a rename failure.
type Kind string

const (
	// KindNotFound indicates a precondition on an existing artifact failed.
	KindNotFound Kind = "not_found"
	// KindDelegatedFailure indicates the environment manager failed.
	KindDelegatedFailure Kind = "delegated_failure"
	// KindStoreFailure indicates a store could not be read or written.
	KindStoreFailure Kind = "store_failure"
	// KindInvalidInput indicates the request itself is unusable.
	KindInvalidInput Kind = "invalid_input"
	// KindConflict indicates the target identifier is already taken.
	KindConflict Kind = "conflict"
	// KindLocked indicates another operation holds one of the identifiers.
	KindLocked Kind = "locked"
)

// kindError is the sentinel type behind ErrNotFound and friends.
type kindError Kind

func (k kindError) Error() string { return "rename: " + string(k) }

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrNotFound         error = kindError(KindNotFound)
	ErrDelegatedFailure error = kindError(KindDelegatedFailure)
	ErrStoreFailure     error = kindError(KindStoreFailure)
	ErrInvalidInput     error = kindError(KindInvalidInput)
	ErrConflict         error = kindError(KindConflict)
	ErrLocked           error = kindError(KindLocked)
)

// Error is a failed rename.
//
// Op names the failing precondition or step ("old script directory",
// "script metadata", "environment rename"). UID is the identifier the step
// was operating on and Path the filesystem location, when there is one.
type Error struct {
	Kind Kind
	Op   string
	UID  uid.ID
	Path string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.UID != "" {
		fmt.Fprintf(&b, " for %q", e.UID.String())
	}
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindError)
	return ok && Kind(k) == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsNotFound reports whether err is a not_found rename failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsDelegatedFailure reports whether err came from the environment manager.
func IsDelegatedFailure(err error) bool { return KindOf(err) == KindDelegatedFailure }

// IsStoreFailure reports whether err is a store failure.
func IsStoreFailure(err error) bool { return KindOf(err) == KindStoreFailure }

// IsInvalidInput reports whether err rejected the request.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsConflict reports whether err is a target conflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsLocked reports whether err is a lock conflict.
func IsLocked(err error) bool { return KindOf(err) == KindLocked }

// Code returns the stable machine-readable code reported to clients for k.
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return "SCRIPT_NOT_FOUND"
	case KindDelegatedFailure:
		return "ENVIRONMENT_ERROR"
	case KindStoreFailure:
		return "DATABASE_ERROR"
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindConflict:
		return "SCRIPT_EXISTS"
	case KindLocked:
		return "RENAME_LOCKED"
	default:
		return "INTERNAL_ERROR"
	}
}
