package teams

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultAliases maps the normalized key of a retired franchise name to the
// canonical display name the stats table should carry.
var DefaultAliases = map[string]string{
	"utah hockey club": "Utah Mammoth",
}

// Key returns the matching key for a team name: diacritics stripped,
// lower-cased, whitespace collapsed.
func Key(s string) string {
	if s == "" {
		return ""
	}
	s = stripDiacritics(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return collapseWhitespace(s)
}

// Canonical resolves a team name through aliases. Names without an alias
// keep their original spelling with surrounding and repeated spaces removed.
func Canonical(s string, aliases map[string]string) string {
	if canonical, ok := aliases[Key(s)]; ok {
		return canonical
	}
	return collapseWhitespace(strings.TrimSpace(s))
}

// Resolver canonicalizes names with a fixed alias table. Alias keys are
// normalized on construction so config files can spell them freely.
type Resolver struct {
	aliases map[string]string
}

func NewResolver(aliases map[string]string) *Resolver {
	r := &Resolver{aliases: make(map[string]string, len(aliases))}
	for from, to := range aliases {
		r.aliases[Key(from)] = to
	}
	return r
}

func (r *Resolver) Canonical(s string) string {
	if r == nil {
		return Canonical(s, nil)
	}
	return Canonical(s, r.aliases)
}

func stripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing (combining accents)
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
