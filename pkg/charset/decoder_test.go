package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_ASCIIPassthrough(t *testing.T) {
	got, err := Windows1251.Decode([]byte("hello, world 123 <tag>"), ModeReplacement)
	require.NoError(t, err)
	assert.Equal(t, "hello, world 123 <tag>", got)
}

func TestDecoder_ReplacementTotality(t *testing.T) {
	// every possible byte value must decode without error
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	got, err := Windows1251.Decode(all, ModeReplacement)
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	got, err = Windows1251.Decode(nil, ModeReplacement)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecoder_Windows1251Mapping(t *testing.T) {
	tbl := []struct {
		in   []byte
		want string
	}{
		{[]byte{0x92}, "’"}, // right single quotation mark
		{[]byte{0xC0}, "А"},
		{[]byte{0xFF}, "я"},
		{[]byte{0xB9}, "№"},
		{[]byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}, "Привет"},
	}

	for _, tt := range tbl {
		got, err := Windows1251.Decode(tt.in, ModeReplacement)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecoder_Modes(t *testing.T) {
	// decoder with a hole at 0x80 to exercise unmapped-byte handling
	var table [128]rune
	table[1] = 'x' // 0x81
	d := NewDecoder("test-enc", nil, table)

	t.Run("replacement substitutes U+FFFD", func(t *testing.T) {
		got, err := d.Decode([]byte{'a', 0x80, 0x81}, ModeReplacement)
		require.NoError(t, err)
		assert.Equal(t, "a�x", got)
	})

	t.Run("fatal fails on unmapped byte", func(t *testing.T) {
		_, err := d.Decode([]byte{'a', 0x80}, ModeFatal)
		require.Error(t, err)

		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr)
		assert.Equal(t, byte(0x80), decErr.Byte)
		assert.Equal(t, 1, decErr.Pos)
	})

	t.Run("fatal succeeds on fully mapped input", func(t *testing.T) {
		got, err := d.Decode([]byte{'a', 0x81}, ModeFatal)
		require.NoError(t, err)
		assert.Equal(t, "ax", got)
	})
}

func TestLookup(t *testing.T) {
	tbl := []struct {
		label string
		found bool
	}{
		{"windows-1251", true},
		{"WINDOWS-1251", true},
		{"cp1251", true},
		{" Win-1251 ", true},
		{"utf-8", false},
		{"", false},
	}

	for _, tt := range tbl {
		t.Run(tt.label, func(t *testing.T) {
			d, ok := Lookup(tt.label)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, "windows-1251", d.Name())
			}
		})
	}
}

func TestDecoder_Aliases(t *testing.T) {
	aliases := Windows1251.Aliases()
	assert.Contains(t, aliases, "windows-1251")
	assert.Contains(t, aliases, "cp1251")
	assert.Equal(t, "windows-1251", aliases[0])
}
