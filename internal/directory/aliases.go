// internal/directory/aliases.go
package directory

import "strings"

// stopWords are tokens that never identify an organization on their own.
var stopWords = map[string]struct{}{
	"inc": {}, "corp": {}, "ltd": {}, "llc": {}, "company": {}, "co": {},
	"group": {}, "international": {}, "pharmaceuticals": {}, "pharma": {},
	"technologies": {}, "technology": {}, "systems": {},
	"not": {}, "yet": {}, "live": {},
	"and": {}, "the": {}, "of": {}, "for": {}, "in": {}, "on": {}, "at": {},
	"with": {}, "by": {}, "from": {}, "to": {}, "a": {}, "an": {},
	"is": {}, "are": {}, "was": {}, "were": {},
}

// deriveAliases breaks an organization name into the distinctive word
// fragments a user might type instead of the full name. Fragments shorter
// than two characters or on the stop-word list are skipped.
func deriveAliases(name string) []string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return nil
	}

	seen := make(map[string]struct{}, len(parts))
	aliases := make([]string, 0, len(parts))
	for _, part := range parts {
		p := strings.ToLower(strings.Trim(part, ".,()"))
		if len(p) < 2 {
			continue
		}
		if _, stop := stopWords[p]; stop {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		aliases = append(aliases, p)
	}
	return aliases
}
