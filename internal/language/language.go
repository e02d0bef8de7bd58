// Package language normalizes user-supplied language identifiers.
//
// Config and CLI flags accept 2-letter codes, 3-letter codes, BCP 47 tags,
// or English names ("ja", "jpn", "ja-JP", "Japanese" all mean the same
// thing). Recognition and translation each want a specific shape, so
// everything is parsed into a tag once and converted at the call sites.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// namedTags covers the languages addressable by English name. Codes outside
// this list still parse through the standard tag parser.
var namedTags = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.Portuguese,
	language.Japanese,
	language.Korean,
	language.Chinese,
	language.Russian,
	language.Arabic,
	language.Hindi,
	language.Dutch,
	language.Polish,
	language.Swedish,
	language.Danish,
	language.Norwegian,
	language.Finnish,
	language.Turkish,
	language.Ukrainian,
}

// Normalize parses any accepted identifier into a language tag.
func Normalize(code string) (language.Tag, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und, false
	}
	if tag, err := language.Parse(code); err == nil && tag != language.Und {
		return tag, true
	}
	namer := display.English.Languages()
	for _, tag := range namedTags {
		if strings.EqualFold(namer.Name(tag), code) {
			return tag, true
		}
	}
	return language.Und, false
}

// ToISO2 converts any accepted identifier to its base code ("en", "ja").
// Unrecognized input yields an empty string.
func ToISO2(code string) string {
	tag, ok := Normalize(code)
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// ToISO3 converts any accepted identifier to its ISO 639-3 code ("eng").
func ToISO3(code string) string {
	tag, ok := Normalize(code)
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return base.ISO3()
}

// DisplayName returns the English name of a language, or the input unchanged
// when it cannot be parsed.
func DisplayName(code string) string {
	tag, ok := Normalize(code)
	if !ok {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
