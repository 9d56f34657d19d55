package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryWords(t *testing.T) {
	terms := ParseQuery("foo bar baz")
	require.Len(t, terms, 3)
	for i, want := range []string{"foo", "bar", "baz"} {
		assert.Equal(t, want, terms[i].Text)
		assert.Equal(t, Word, terms[i].Kind)
	}
}

func TestParseQueryPhrase(t *testing.T) {
	for _, input := range []string{`"hello world"`, `  "hello world"  `} {
		terms := ParseQuery(input)
		require.Len(t, terms, 1, "input %q", input)
		assert.Equal(t, "hello world", terms[0].Text)
		assert.Equal(t, Phrase, terms[0].Kind)
	}
}

func TestParseQueryMixed(t *testing.T) {
	terms := ParseQuery(`alpha "beta gamma" delta`)
	require.Len(t, terms, 3)
	assert.Equal(t, Term{Text: "alpha", Kind: Word}, terms[0])
	assert.Equal(t, Term{Text: "beta gamma", Kind: Phrase}, terms[1])
	assert.Equal(t, Term{Text: "delta", Kind: Word}, terms[2])
}

func TestParseQueryUnterminatedQuote(t *testing.T) {
	terms := ParseQuery(`foo "bar baz`)
	require.Len(t, terms, 2)
	assert.Equal(t, Term{Text: "foo", Kind: Word}, terms[0])
	assert.Equal(t, Term{Text: "bar baz", Kind: Phrase}, terms[1])
}

func TestParseQueryEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", `""`, `" "`} {
		assert.Empty(t, ParseQuery(input), "input %q", input)
	}
}

func TestTermToMatchPattern(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"plain", "%plain%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`back\slash`, `%back\\slash%`},
		{"%_", `%\%\_%`},
	}
	for _, tt := range tests {
		got := TermToMatchPattern(Term{Text: tt.term, Kind: Word})
		assert.Equal(t, tt.want, got, "term %q", tt.term)
	}
}

func TestGlobToMatchPattern(t *testing.T) {
	tests := []struct {
		glob string
		want string
	}{
		{"*.tmp", "%.tmp"},
		{"thumb_*", `thumb\_%`},
		{"100%*", `100\%%`},
		{"exact.name", "exact.name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GlobToMatchPattern(tt.glob), "glob %q", tt.glob)
	}
}

func TestParseExcludeFilename(t *testing.T) {
	ex, err := ParseExclude("*.tmp")
	require.NoError(t, err)
	assert.Equal(t, ExcludeFilename, ex.Kind)
	assert.Equal(t, "%.tmp", ex.Match)
	assert.Equal(t, "*.tmp", ex.Raw)
}

func TestParseExcludeDirectoryForms(t *testing.T) {
	slash, err := ParseExclude("@eaDir/")
	require.NoError(t, err)
	star, err := ParseExclude("@eaDir/*")
	require.NoError(t, err)

	assert.Equal(t, ExcludeDirectory, slash.Kind)
	assert.Equal(t, ExcludeDirectory, star.Kind)
	assert.Equal(t, slash.Match, star.Match)
	assert.Equal(t, "@eaDir", slash.Match)
}

func TestParseExcludeInvalid(t *testing.T) {
	for _, raw := range []string{"a/b/c", "a/b/", "/", "", "/*"} {
		_, err := ParseExclude(raw)
		assert.ErrorIs(t, err, ErrInvalidPattern, "pattern %q", raw)
	}
}
