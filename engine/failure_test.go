package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/nip/engine"
)

func TestFailureKind_Errno_ExactMapping(t *testing.T) {
	cases := map[engine.FailureKind]int{
		engine.FailureConnectionRefused: int(unix.ECONNREFUSED),
		engine.FailureForeignError:      int(unix.ECHILD),
		engine.FailureIgnored:           0,
		engine.FailureMalformed:         int(unix.EILSEQ),
		engine.FailureMisdelivered:      int(unix.EHOSTUNREACH),
		engine.FailureOutOfRange:        int(unix.ERANGE),
		engine.FailureResourceBusy:      int(unix.EBUSY),
		engine.FailureResourceExhausted: int(unix.ENOMEM),
		engine.FailureResourceNotFound:  int(unix.ENOENT),
		engine.FailureTimeout:           int(unix.ETIMEDOUT),
		engine.FailureTypeMismatch:      int(unix.EPERM),
		engine.FailureUnderflow:         int(unix.EOVERFLOW),
		engine.FailureUnsupported:       int(unix.ENOTSUP),
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Errno(), kind.String())
	}
}

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	f := engine.WrapFailure(engine.FailureMalformed, cause, "bad frame from %s", "eth0")
	assert.ErrorIs(t, f, cause)
	assert.Contains(t, f.Error(), "Malformed")
	assert.Contains(t, f.Error(), "bad frame from eth0")
}

func TestNewFailure_NoCause(t *testing.T) {
	f := engine.NewFailure(engine.FailureIgnored, "not for us")
	assert.Nil(t, f.Unwrap())
	assert.Equal(t, 0, f.Kind.Errno())
}
