package pio

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := NewDecompError("write_darray", 3, 7, CodeBadArg, "arraylen must be positive")
	assert.Equal(t, "pio: arraylen must be positive (op=write_darray)", err.Error())
	assert.Equal(t, 3, err.FileID)
	assert.Equal(t, 7, err.IOID)
}

func TestErrorMessageFallsBackToCode(t *testing.T) {
	err := NewError("flush", CodeOutOfMemory, "")
	assert.Equal(t, "pio: OUT_OF_MEMORY", err.Error())
}

func TestIsCode(t *testing.T) {
	err := NewFileError("read_darray", 1, CodeTransport, "recv failed")
	assert.True(t, IsCode(err, CodeTransport))
	assert.False(t, IsCode(err, CodeBadArg))
	assert.False(t, IsCode(errors.New("plain"), CodeTransport))
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	a := NewFileError("write_darray_multi", 1, CodeBadIOType, "unknown iotype foo")
	assert.True(t, errors.Is(a, &Error{Code: CodeBadIOType}))
	assert.False(t, errors.Is(a, &Error{Code: CodeBadArg}))
}

func TestWrapTransportError(t *testing.T) {
	cause := fmt.Errorf("swapm: ready-send to 2: connection reset")
	wrapped := WrapTransportError("write_darray_multi", 5, cause)
	require.Equal(t, CodeTransport, wrapped.Code)
	assert.Equal(t, cause, errors.Unwrap(wrapped))

	inner := NewDecompError("rearrange", 5, 2, CodeTransport, "peer unreachable")
	rewrapped := WrapTransportError("write_darray_multi", 5, inner)
	assert.Equal(t, 2, rewrapped.IOID)

	assert.Nil(t, WrapTransportError("op", 1, nil))
}
