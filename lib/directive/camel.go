package directive

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titler = cases.Title(language.Und, cases.NoLower)

// Camelize normalizes a hyphenated name to its camel-cased form:
// "value-as-date" becomes "valueAsDate". Names without hyphens are
// returned unchanged.
func Camelize(name string) string {
	if !strings.Contains(name, "-") {
		return name
	}
	segs := strings.Split(name, "-")
	var b strings.Builder
	b.WriteString(segs[0])
	for _, s := range segs[1:] {
		if s == "" {
			continue
		}
		b.WriteString(titler.String(s))
	}
	return b.String()
}
