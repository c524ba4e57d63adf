package grammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	cases := []string{
		"plain text",
		"has|pipe",
		"has[bracket]and;semi,comma{brace}",
		"hash#at@caret^back\\slash",
		"line\nbreak",
		"",
	}
	for _, c := range cases {
		escaped := Escape(c)
		assert.Equal(t, c, string(Unescape([]byte(escaped))), "round trip for %q", c)
	}
}

func TestUnescapeLenientUnknownEscape(t *testing.T) {
	// \X for X outside the escape set passes through literally (spec §9.3).
	got := Unescape([]byte(`foo\zbar`))
	assert.Equal(t, `foo\zbar`, string(got))
}

func TestUnescapeTrailingBackslash(t *testing.T) {
	got := Unescape([]byte(`foo\`))
	assert.Equal(t, `foo\`, string(got))
}

func TestFindUnescaped(t *testing.T) {
	assert.Equal(t, 3, FindUnescaped([]byte("abc|def"), '|'))
	assert.Equal(t, -1, FindUnescaped([]byte(`abc\|def`), '|'))
	assert.Equal(t, 8, FindUnescaped([]byte(`abc\|def|ghi`), '|'))
}

func TestSplitRespectsEscapes(t *testing.T) {
	fields := Split([]byte(`a|b\|c|d`), '|', -1)
	require.Len(t, fields, 3)
	assert.Equal(t, "a", string(fields[0]))
	assert.Equal(t, `b\|c`, string(fields[1]))
	assert.Equal(t, "d", string(fields[2]))
}

func TestSplitMaxSplits(t *testing.T) {
	fields := Split([]byte("a|b|c|d|e"), '|', 2)
	require.Len(t, fields, 3)
	assert.Equal(t, "a", string(fields[0]))
	assert.Equal(t, "b", string(fields[1]))
	assert.Equal(t, "c|d|e", string(fields[2]))
}

func TestCheckFrameStripsTrailingNewline(t *testing.T) {
	out, err := CheckFrame([]byte("PUSH|x\n"), MaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, "PUSH|x", string(out))
}

func TestCheckFrameRejectsNul(t *testing.T) {
	_, err := CheckFrame([]byte("PUSH|\x00x"), MaxFrameSize)
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, NulByte, pe.Kind)
	assert.Equal(t, 5, pe.Pos)
}

func TestCheckFrameRejectsOversize(t *testing.T) {
	big := strings.Repeat("a", MaxFrameSize+1)
	_, err := CheckFrame([]byte(big), MaxFrameSize)
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, FrameTooLarge, pe.Kind)
}

func TestCheckFrameRejectsEmpty(t *testing.T) {
	_, err := CheckFrame([]byte{}, MaxFrameSize)
	require.Error(t, err)
	assert.Equal(t, EmptyFrame, err.(*ParseError).Kind)
}
