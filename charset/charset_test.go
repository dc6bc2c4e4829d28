package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCascade_Default(t *testing.T) {
	cs, err := NewCascade(nil)
	require.NoError(t, err)
	assert.Same(t, Default, cs)
}

func TestNewCascade_Latin1(t *testing.T) {
	cs, err := NewCascade([]string{"ISO_IR 100"})
	require.NoError(t, err)

	decoded, err := cs.Decode([]byte{0xE9}) // é in Latin-1
	require.NoError(t, err)
	assert.Equal(t, "é", decoded)
}

func TestNewCascade_UTF8PassThrough(t *testing.T) {
	cs, err := NewCascade([]string{"ISO_IR 192"})
	require.NoError(t, err)

	decoded, err := cs.Decode([]byte("Yamada^Tarou=山田^太郎"))
	require.NoError(t, err)
	assert.Equal(t, "Yamada^Tarou=山田^太郎", decoded)
}

func TestNewCascade_UnrecognizedTerm(t *testing.T) {
	_, err := NewCascade([]string{"NOT_A_REAL_TERM"})
	assert.Error(t, err)
}

func TestCascade_DecodeTrimsPadding(t *testing.T) {
	decoded, err := Default.Decode([]byte("DOE^JOHN \x00"))
	require.NoError(t, err)
	assert.Equal(t, "DOE^JOHN", decoded)
}

func TestCascade_Child(t *testing.T) {
	parent, err := NewCascade([]string{"ISO_IR 100"})
	require.NoError(t, err)

	inherited, err := parent.Child(nil)
	require.NoError(t, err)
	assert.Same(t, parent, inherited)

	overridden, err := parent.Child([]string{"ISO_IR 192"})
	require.NoError(t, err)
	assert.NotSame(t, parent, overridden)
	assert.Equal(t, "ISO_IR 192", overridden.String())
}

func TestCascade_String(t *testing.T) {
	cs, err := NewCascade([]string{"ISO 2022 IR 100", "ISO 2022 IR 87"})
	require.NoError(t, err)
	assert.Equal(t, `ISO 2022 IR 100\ISO 2022 IR 87`, cs.String())
}
