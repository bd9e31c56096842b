package whatsapp

import (
	"strings"
	"unicode"

	"github.com/forPelevin/gomoji"
	"go.mau.fi/whatsmeow/types"
	"golang.org/x/text/cases"
)

// Group is the minimal descriptor of a joined WhatsApp group.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MatchKind records which rule selected the destination group.
type MatchKind string

const (
	MatchNone      MatchKind = ""
	MatchID        MatchKind = "id"
	MatchName      MatchKind = "name"
	MatchPrefix    MatchKind = "prefix"
	MatchSubstring MatchKind = "substring"
	MatchAlnum     MatchKind = "alphanumeric"
	MatchSole      MatchKind = "sole_group"
)

var folder = cases.Fold()

// NormalizeGroupID trims the id and appends the group server suffix when
// the caller passed a bare numeric id.
func NormalizeGroupID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if !strings.Contains(id, "@") {
		id += "@" + types.GroupServer
	}
	return id
}

// NormalizeName folds case and collapses runs of whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(folder.String(name)), " ")
}

// AlnumKey keeps only letters and digits (any script) of the folded name,
// with emoji removed first.
func AlnumKey(name string) string {
	name = folder.String(gomoji.RemoveEmojis(name))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}

// SelectGroup picks the destination among the joined groups. Rules are
// tried strictly in order and the first rule with any hit wins; inside a
// rule the first group in input order wins.
func SelectGroup(groups []Group, configuredID, configuredName string) (Group, MatchKind, bool) {
	if id := NormalizeGroupID(configuredID); id != "" {
		for _, g := range groups {
			if g.ID == id {
				return g, MatchID, true
			}
		}
	}

	if name := NormalizeName(configuredName); name != "" {
		rules := []struct {
			kind  MatchKind
			match func(candidate string) bool
		}{
			{MatchName, func(c string) bool { return c == name }},
			{MatchPrefix, func(c string) bool { return strings.HasPrefix(c, name) }},
			{MatchSubstring, func(c string) bool { return strings.Contains(c, name) }},
		}
		for _, rule := range rules {
			for _, g := range groups {
				if rule.match(NormalizeName(g.Name)) {
					return g, rule.kind, true
				}
			}
		}

		if key := AlnumKey(configuredName); key != "" {
			for _, g := range groups {
				if AlnumKey(g.Name) == key {
					return g, MatchAlnum, true
				}
			}
		}
	}

	if len(groups) == 1 {
		return groups[0], MatchSole, true
	}
	return Group{}, MatchNone, false
}
