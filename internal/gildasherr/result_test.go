package gildasherr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOkIsOk(t *testing.T) {
	r := Ok(42)
	assert.True(t, r.IsOk())
	assert.Equal(t, 42, r.Value())
	assert.Nil(t, r.Err())
}

func TestFailCarriesType(t *testing.T) {
	r := Fail[int](Validation, "bad path", nil)
	require.False(t, r.IsOk())
	require.NotNil(t, r.Err())
	assert.Equal(t, Validation, r.Err().Type)
	assert.Equal(t, "bad path", r.Err().Message)
}

func TestWrapNilErrIsOk(t *testing.T) {
	r := Wrap(Store, "value", nil)
	assert.True(t, r.IsOk())
	assert.Equal(t, "value", r.Value())
}

func TestWrapErrIsFail(t *testing.T) {
	underlying := errors.New("boom")
	r := Wrap[string](Store, "", underlying)
	require.False(t, r.IsOk())
	assert.Equal(t, Store, r.Err().Type)
	assert.ErrorIs(t, r.Err(), underlying)
}

func TestUnwrapPanicsOnFailure(t *testing.T) {
	r := Fail[int](Closed, "closed", nil)
	assert.Panics(t, func() { r.Unwrap() })
}
