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

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// FoldASCII strips combining marks after NFD decomposition, turning
// "Étang" into "Etang".
func FoldASCII(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// DatasetLabel builds the default export name for a dataset root from its
// base name. Returns "dataset" when nothing usable remains.
func DatasetLabel(root string) string {
	base := filepath.Base(filepath.Clean(strings.TrimSpace(root)))
	if base == "." || base == string(filepath.Separator) {
		return "dataset"
	}
	base = FoldASCII(SanitizeFileName(base))

	var b strings.Builder
	pendingDash := false
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_', r == '.':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	label := strings.Trim(b.String(), ".-_")
	if label == "" {
		return "dataset"
	}
	return label
}

var titleCaser = cases.Title(language.English)

// Title renders a lowercase identifier such as "image-dir" or "vehicles"
// for display ("Image Dir", "Vehicles").
func Title(value string) string {
	value = strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(value))
	return titleCaser.String(value)
}
