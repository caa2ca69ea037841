package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionalDigest(t *testing.T) {
	var zero OptionalDigest
	require.False(t, zero.IsPresent())
	require.Equal(t, NoDigest(), zero)
	require.Equal(t, "none", zero.String())

	d := Digest{0xab, 0xcd}
	some := SomeDigest(d)

	value, ok := some.Get()
	require.True(t, ok)
	require.Equal(t, d, value)
	require.Equal(t, "abcd0000", some.String())

	// A present zero digest is not the same as an absent one.
	require.NotEqual(t, NoDigest(), SomeDigest(Digest{}))
}

func TestOptionalBytes(t *testing.T) {
	_, ok := NoBytes().Get()
	require.False(t, ok)

	value, ok := SomeBytes(nil).Get()
	require.True(t, ok)
	require.NotNil(t, value)
	require.Empty(t, value)

	value, ok = SomeBytes([]byte{1}).Get()
	require.True(t, ok)
	require.Equal(t, []byte{1}, value)
}
