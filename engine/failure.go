package engine

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FailureKind is the closed enumeration of ways a protocol coroutine or
// facade operation can fail.
type FailureKind int

const (
	FailureConnectionRefused FailureKind = iota
	FailureForeignError
	FailureIgnored
	FailureMalformed
	FailureMisdelivered
	FailureOutOfRange
	FailureResourceBusy
	FailureResourceExhausted
	FailureResourceNotFound
	FailureTimeout
	FailureTypeMismatch
	FailureUnderflow
	FailureUnsupported
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnectionRefused:
		return "ConnectionRefused"
	case FailureForeignError:
		return "ForeignError"
	case FailureIgnored:
		return "Ignored"
	case FailureMalformed:
		return "Malformed"
	case FailureMisdelivered:
		return "Misdelivered"
	case FailureOutOfRange:
		return "OutOfRange"
	case FailureResourceBusy:
		return "ResourceBusy"
	case FailureResourceExhausted:
		return "ResourceExhausted"
	case FailureResourceNotFound:
		return "ResourceNotFound"
	case FailureTimeout:
		return "Timeout"
	case FailureTypeMismatch:
		return "TypeMismatch"
	case FailureUnderflow:
		return "Underflow"
	case FailureUnsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// Errno is the exact FailureKind -> POSIX errno mapping the host boundary
// uses to translate a Failure into a C int return value. FailureIgnored
// maps to 0: an intentional no-op is not an error to the caller.
func (k FailureKind) Errno() int {
	switch k {
	case FailureConnectionRefused:
		return int(unix.ECONNREFUSED)
	case FailureForeignError:
		return int(unix.ECHILD)
	case FailureIgnored:
		return 0
	case FailureMalformed:
		return int(unix.EILSEQ)
	case FailureMisdelivered:
		return int(unix.EHOSTUNREACH)
	case FailureOutOfRange:
		return int(unix.ERANGE)
	case FailureResourceBusy:
		return int(unix.EBUSY)
	case FailureResourceExhausted:
		return int(unix.ENOMEM)
	case FailureResourceNotFound:
		return int(unix.ENOENT)
	case FailureTimeout:
		return int(unix.ETIMEDOUT)
	case FailureTypeMismatch:
		return int(unix.EPERM)
	case FailureUnderflow:
		return int(unix.EOVERFLOW)
	case FailureUnsupported:
		return int(unix.ENOTSUP)
	default:
		return int(unix.EINVAL)
	}
}

// Failure is the typed error surfaced by receive/peek/poll and by protocol
// coroutines. It carries enough context to log meaningfully while still
// reducing cleanly to a single errno at the host boundary.
type Failure struct {
	Kind    FailureKind
	Message string
	Cause   error
}

// NewFailure constructs a Failure of the given kind, formatting message the
// way fmt.Errorf does.
func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapFailure constructs a Failure of the given kind around an underlying
// cause, retained for Unwrap.
func WrapFailure(kind FailureKind, cause error, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}
