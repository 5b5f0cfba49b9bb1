package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugBaseLength bounds the name-derived part of a slug.
const MaxSlugBaseLength = 48

// foldReplacer handles letters that do not decompose into base + mark.
var foldReplacer = strings.NewReplacer(
	"đ", "d", "Đ", "D",
	"ß", "ss",
	"æ", "ae", "Æ", "AE",
	"ø", "o", "Ø", "O",
	"ł", "l", "Ł", "L",
)

// Fold strips diacritics, so "Ghế Bành" becomes "Ghe Banh".
func Fold(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, foldReplacer.Replace(value))
	if err != nil {
		return value
	}
	return folded
}

// Slugify lowercases value and reduces it to [a-z0-9] runs joined by single
// hyphens. It returns "" when nothing usable remains.
func Slugify(value string) string {
	folded := strings.ToLower(Fold(value))
	var b strings.Builder
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	slug := b.String()
	if len(slug) > MaxSlugBaseLength {
		slug = strings.TrimRight(slug[:MaxSlugBaseLength], "-")
	}
	return slug
}

// DisplayName derives a human readable name from an upload filename:
// "red_armchair-v2.glb" becomes "Red Armchair V2".
func DisplayName(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return ""
	}
	return cases.Title(language.Und, cases.NoLower).String(base)
}

// SanitizeFileName makes an upload filename safe to store and echo back in a
// Content-Disposition header. Path separators, colons and asterisks become
// hyphens; quotes, shell metacharacters and control characters are dropped.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			return '-'
		case strings.ContainsRune(`?"<>|`, r), unicode.IsControl(r):
			return -1
		}
		return r
	}, name))
}
