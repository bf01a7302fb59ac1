// Package language maps language display names to ISO 639-1 codes and back.
package language

import "strings"

// Language is one row of the table
type Language struct {
	Name string
	Code string // ISO 639-1
}

var languages = []Language{
	{"English", "en"},
	{"Spanish", "es"},
	{"French", "fr"},
	{"German", "de"},
	{"Italian", "it"},
	{"Portuguese", "pt"},
	{"Polish", "pl"},
	{"Romanian", "ro"},
	{"Lithuanian", "lt"},
	{"Latvian", "lv"},
	{"Estonian", "et"},
	{"Bulgarian", "bg"},
	{"Ukrainian", "uk"},
	{"Russian", "ru"},
	{"Czech", "cs"},
	{"Slovak", "sk"},
	{"Hungarian", "hu"},
	{"Croatian", "hr"},
	{"Serbian", "sr"},
	{"Slovenian", "sl"},
	{"Greek", "el"},
	{"Turkish", "tr"},
	{"Dutch", "nl"},
	{"Irish", "ga"},
	{"Welsh", "cy"},
	{"Albanian", "sq"},
	{"Arabic", "ar"},
	{"Hindi", "hi"},
	{"Urdu", "ur"},
	{"Punjabi", "pa"},
	{"Bengali", "bn"},
	{"Chinese", "zh"},
	{"Japanese", "ja"},
	{"Korean", "ko"},
	{"Vietnamese", "vi"},
	{"Tagalog", "tl"},
	{"Swahili", "sw"},
}

// Index maps built at init time.
var (
	byName map[string]Language
	byCode map[string]Language
)

func init() {
	byName = make(map[string]Language, len(languages))
	byCode = make(map[string]Language, len(languages))
	for _, l := range languages {
		byName[strings.ToLower(l.Name)] = l
		byCode[l.Code] = l
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CodeFor returns the ISO code for a display name. Unknown names fall back to
// their lowercased first two characters; the result is advisory for names that
// fail IsValidLanguage.
func CodeFor(name string) string {
	key := normalize(name)
	if l, ok := byName[key]; ok {
		return l.Code
	}
	runes := []rune(key)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return string(runes)
}

// NameFor returns the display name for a code, or the code unchanged when unknown.
func NameFor(code string) string {
	if l, ok := byCode[normalize(code)]; ok {
		return l.Name
	}
	return code
}

// IsValidLanguage reports whether name is a known display name.
func IsValidLanguage(name string) bool {
	_, ok := byName[normalize(name)]
	return ok
}

// IsValidCode reports whether code is a known ISO code.
func IsValidCode(code string) bool {
	_, ok := byCode[normalize(code)]
	return ok
}

// Resolve accepts either a display name or an ISO code and returns the code.
func Resolve(nameOrCode string) (string, bool) {
	key := normalize(nameOrCode)
	if l, ok := byName[key]; ok {
		return l.Code, true
	}
	if l, ok := byCode[key]; ok {
		return l.Code, true
	}
	return "", false
}

// AllLanguages returns the table in its fixed display order.
func AllLanguages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}
