package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// EscapeChar is the LIKE escape character used by every pattern this
// package emits. Queries built from these patterns must carry ESCAPE '\'.
const EscapeChar = `\`

// TermKind distinguishes how a term was tokenized. Matching treats both
// kinds identically; the distinction only records whether the user quoted it.
type TermKind int

const (
	Word TermKind = iota
	Phrase
)

// Term is one unit of a parsed search query.
type Term struct {
	Text string
	Kind TermKind
}

// ParseQuery splits user-typed search text into terms. Text inside double
// quotes becomes a single phrase term, verbatim apart from surrounding
// whitespace; text outside quotes is split on whitespace into word terms.
// An unterminated trailing quote extends the phrase to the end of the
// string. Malformed input never fails: the worst case is an empty term
// list, which callers treat as match-everything.
func ParseQuery(text string) []Term {
	terms := make([]Term, 0, 4)
	for i, seg := range strings.Split(text, `"`) {
		if i%2 == 1 {
			if p := strings.TrimSpace(seg); p != "" {
				terms = append(terms, Term{Text: p, Kind: Phrase})
			}
			continue
		}
		for _, w := range strings.Fields(seg) {
			terms = append(terms, Term{Text: w, Kind: Word})
		}
	}
	return terms
}

// likeEscaper neutralizes the characters with special meaning in the LIKE
// language: the multi-character wildcard, the single-character wildcard and
// the escape character itself.
var likeEscaper = strings.NewReplacer(
	EscapeChar, EscapeChar+EscapeChar,
	"%", EscapeChar+"%",
	"_", EscapeChar+"_",
)

// TermToMatchPattern converts a term into a LIKE pattern that matches the
// term's text as a literal substring. Wildcard characters inside the term
// match only themselves. LIKE is case-insensitive, so no folding is needed.
func TermToMatchPattern(t Term) string {
	return "%" + likeEscaper.Replace(t.Text) + "%"
}

// GlobToMatchPattern converts a glob-style pattern into a LIKE pattern.
// Wildcard-special characters are escaped first, then glob '*' becomes the
// multi-character wildcard, so escaping can never introduce a live
// wildcard. A '.' needs no escape in the LIKE language and passes through.
func GlobToMatchPattern(glob string) string {
	return strings.ReplaceAll(likeEscaper.Replace(glob), "*", "%")
}

// ExcludeKind classifies an exclude pattern.
type ExcludeKind int

const (
	// ExcludeFilename matches against an entry's own name while candidates
	// are scanned.
	ExcludeFilename ExcludeKind = iota
	// ExcludeDirectory matches a directory and everything beneath it,
	// against resolved full paths.
	ExcludeDirectory
)

// Exclude is a compiled exclude pattern.
type Exclude struct {
	Kind ExcludeKind
	// Raw is the pattern as the user wrote it, kept for diagnostics.
	Raw string
	// Match is the LIKE pattern: the escaped filename glob for
	// ExcludeFilename, or the escaped directory name (trailing marker
	// stripped) for ExcludeDirectory.
	Match string
}

// ErrInvalidPattern reports an exclude pattern that cannot be classified.
var ErrInvalidPattern = errors.New("invalid exclude pattern")

// ParseExclude classifies one user-supplied exclude pattern. A pattern with
// no path separator is a filename pattern. A trailing "/" or "/*" marks a
// directory pattern; the marker is stripped. A separator anywhere else is
// rejected.
func ParseExclude(raw string) (Exclude, error) {
	name := raw
	kind := ExcludeFilename
	switch {
	case strings.HasSuffix(name, "/*"):
		name = strings.TrimSuffix(name, "/*")
		kind = ExcludeDirectory
	case strings.HasSuffix(name, "/"):
		name = strings.TrimSuffix(name, "/")
		kind = ExcludeDirectory
	}
	if name == "" {
		return Exclude{}, fmt.Errorf("%w: %q: empty pattern", ErrInvalidPattern, raw)
	}
	if strings.Contains(name, "/") {
		return Exclude{}, fmt.Errorf("%w: %q: separator allowed only at the end", ErrInvalidPattern, raw)
	}
	return Exclude{Kind: kind, Raw: raw, Match: GlobToMatchPattern(name)}, nil
}
