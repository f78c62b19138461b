package language

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Info describes a dubbing target language.
type Info struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

type target struct {
	code    string
	english string
	// aliases are lowercase spellings accepted besides the code and the
	// English name: ISO 639-2 T and B codes and common synonyms.
	aliases []string
}

// targets are the languages a video can be dubbed into, in display order.
var targets = []target{
	{"en", "English", []string{"eng"}},
	{"es", "Spanish", []string{"spa", "castilian", "espanol", "español"}},
	{"fr", "French", []string{"fra", "fre", "francais", "français"}},
	{"de", "German", []string{"deu", "ger", "deutsch"}},
	{"hi", "Hindi", []string{"hin"}},
	{"zh", "Chinese", []string{"zho", "chi", "mandarin"}},
	{"ja", "Japanese", []string{"jpn"}},
	{"ko", "Korean", []string{"kor"}},
	{"pt", "Portuguese", []string{"por", "portugues", "português"}},
	{"ru", "Russian", []string{"rus"}},
	{"ar", "Arabic", []string{"ara"}},
	{"it", "Italian", []string{"ita", "italiano"}},
}

func findTarget(key string) (target, bool) {
	for _, t := range targets {
		if key == t.code || key == strings.ToLower(t.english) || slices.Contains(t.aliases, key) {
			return t, true
		}
	}
	return target{}, false
}

// ToISO2 converts a language code or English name to ISO 639-1. Dub targets
// accept their aliases; other codes go through the CLDR tables, and unknown
// two-letter codes pass through. Anything else yields "".
func ToISO2(code string) string {
	key := strings.ToLower(strings.TrimSpace(code))
	if key == "" {
		return ""
	}
	if t, ok := findTarget(key); ok {
		return t.code
	}
	if base, err := xlanguage.ParseBase(key); err == nil {
		if iso := base.String(); len(iso) == 2 {
			return iso
		}
	}
	if len(key) == 2 {
		return key
	}
	return ""
}

// DisplayName returns the English name for code: "Unknown" when empty, the
// upper-cased input when nothing recognises it.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	iso := ToISO2(trimmed)
	if t, ok := findTarget(iso); ok {
		return t.english
	}
	if iso != "" {
		if tag, err := xlanguage.Parse(iso); err == nil {
			if name := display.English.Languages().Name(tag); name != "" {
				return name
			}
		}
	}
	return strings.ToUpper(trimmed)
}

// NativeName returns the language's own name for itself, title-cased for
// scripts that have case. Unparseable codes fall back to DisplayName.
func NativeName(code string) string {
	iso := ToISO2(code)
	if iso == "" {
		return DisplayName(code)
	}
	tag, err := xlanguage.Parse(iso)
	if err != nil {
		return DisplayName(code)
	}
	name := display.Self.Name(tag)
	if name == "" {
		return DisplayName(code)
	}
	return cases.Title(tag).String(name)
}

// Supported lists the dubbing targets with English and native names.
func Supported() []Info {
	out := make([]Info, 0, len(targets))
	for _, t := range targets {
		out = append(out, Info{Code: t.code, Name: t.english, Native: NativeName(t.code)})
	}
	return out
}

// IsSupported reports whether code, in any accepted spelling, is a dubbing
// target.
func IsSupported(code string) bool {
	_, ok := findTarget(ToISO2(code))
	return ok
}
