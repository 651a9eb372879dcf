package directory

import "strings"

var droppedPhrases = []string{
	"royal borough of ",
	"city of ",
	"metropolitan district council",
	"london borough of",
	"council of",
}

var droppedWords = map[string]struct{}{
	"city":         {},
	"metropolitan": {},
	"borough":      {},
	"council":      {},
	"county":       {},
	"district":     {},
	"the":          {},
}

// NormalizeName reduces a provider display name to the short lowercase
// authority name used in output rows and storage paths, e.g.
// "London Borough of Barnet" becomes "barnet".
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	for _, p := range droppedPhrases {
		name = strings.ReplaceAll(name, p, "")
	}
	parts := strings.Fields(name)
	kept := parts[:0]
	for _, p := range parts {
		if _, drop := droppedWords[p]; !drop {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
