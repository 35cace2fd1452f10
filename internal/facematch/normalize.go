// Package facematch provides face and person-name helpers shared between the
// clustering engine, the CLI and the web handlers.
package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/face-cluster/internal/database"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for loose comparison (lowercase, no diacritics, spaces for dashes).
// Used for searching; stored names keep their original spelling.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// CanonicalName returns the stored form of a person name: NFC-composed, trimmed,
// with inner whitespace runs collapsed to a single space. Two corrections naming
// the same person resolve to the same cluster only if their canonical names match.
func CanonicalName(name string) string {
	name = norm.NFC.String(name)
	return strings.Join(strings.Fields(name), " ")
}

// FilterByLooseName returns the clusters whose name matches name after
// NormalizePersonName, keeping their order.
func FilterByLooseName(clusters []database.Cluster, name string) []database.Cluster {
	want := NormalizePersonName(name)
	if want == "" {
		return nil
	}
	var out []database.Cluster
	for _, c := range clusters {
		if c.Name != "" && NormalizePersonName(c.Name) == want {
			out = append(out, c)
		}
	}
	return out
}
