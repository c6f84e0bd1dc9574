package sterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfExtractsKind(t *testing.T) {
	err := New(NotFound, "missing")
	assert.Equal(t, NotFound, KindOf(err))
}

func TestKindOfNonSutraErrorDefaultsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestKindOfNilIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(nil))
}

func TestWrapPreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IoError, "flush failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, IoError, KindOf(err))
}

func TestInvalidAndNotFoundfFormat(t *testing.T) {
	err := Invalid("bad dimension %d", 7)
	assert.Contains(t, err.Error(), "7")
	assert.Equal(t, InvalidArgument, KindOf(err))

	nf := NotFoundf("concept %s", "abc")
	assert.Contains(t, nf.Error(), "abc")
	assert.Equal(t, NotFound, KindOf(nf))
}
