package access

import "strings"

// KeywordTableVersion identifies the current shortcut and keyword tables.
// Bump it whenever either table changes so derived sets can be compared
// across releases.
const KeywordTableVersion = 1

// ShortcutPhrases classify a description as unrestricted. A hit fixes the
// result to {all} and stops keyword scanning.
var ShortcutPhrases = []string{"full", "all access", "full access"}

// Keyword maps a substring of a permission description to a capability.
type Keyword struct {
	Text       string
	Capability Capability
}

// Keywords is scanned when no shortcut phrase matched. Matching is plain
// substring containment, so "no mapping used" still grants Map.
//
// admin/administrator/all reach All through the union here as well as via
// the shortcut phrases; both paths are kept.
var Keywords = []Keyword{
	{"profile", Profiles},
	{"profiles", Profiles},
	{"chart", Charts},
	{"charts", Charts},
	{"export", Export},
	{"exports", Export},
	{"production", Production},
	{"mineral", Database},
	{"database", Database},
	{"insight", Insights},
	{"insights", Insights},
	{"map", Map},
	{"all", All},
	{"admin", All},
	{"administrator", All},
}

// Resolve derives a capability set from a free-text permission description.
// Empty or unrecognised text resolves to the empty set.
func Resolve(description string) Set {
	text := strings.ToLower(description)
	if text == "" {
		return 0
	}

	for _, phrase := range ShortcutPhrases {
		if strings.Contains(text, phrase) {
			return NewSet(All)
		}
	}

	var s Set
	for _, kw := range Keywords {
		if strings.Contains(text, kw.Text) {
			s = s.With(kw.Capability)
		}
	}
	return s
}
