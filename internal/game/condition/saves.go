package condition

import "strings"

// saveAliases folds the save-type labels that appear in content files and
// inbound requests onto the six canonical ability names. Reflex- and
// fortitude-style labels map to the ability that backs them.
var saveAliases = map[string]string{
	"str": "strength",
	"dex": "dexterity",
	"con": "constitution",
	"int": "intelligence",
	"wis": "wisdom",
	"cha": "charisma",

	"reflex":    "dexterity",
	"agility":   "dexterity",
	"fortitude": "constitution",
	"will":      "wisdom",
	"mind":      "wisdom",
}

// NormalizeSave maps an inbound save-type label onto its canonical ability
// name. Unknown labels pass through lowercased so custom content can still
// match itself.
func NormalizeSave(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if canon, ok := saveAliases[s]; ok {
		return canon
	}
	return s
}

// ReflexSave reports whether the save type is dexterity-backed. Cover
// benefits these saves only.
func ReflexSave(s string) bool {
	return NormalizeSave(s) == "dexterity"
}
