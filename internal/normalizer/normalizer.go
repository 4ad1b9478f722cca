// Package normalizer canonicalizes place names into the lowercase,
// ASCII-folded form used as the cache key across every script/language a
// user might type a place name in.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// knownTranslations is a small curated table of non-Latin-script place
// names whose canonical ASCII form does not fall out of simple
// decomposition (Persian city names, grounded on the source data set).
var knownTranslations = map[string]string{
	"تهران":    "tehran",
	"مشهد":     "mashhad",
	"اصفهان":   "isfahan",
	"شیراز":    "shiraz",
	"تبریز":    "tabriz",
	"کرج":      "karaj",
	"قم":       "qom",
	"اهواز":    "ahvaz",
	"کرمانشاه": "kermanshah",
	"ارومیه":   "urmia",
	"رشت":      "rasht",
	"کرمان":    "kerman",
	"همدان":    "hamedan",
	"اردبیل":   "ardabil",
	"یزد":      "yazd",
	"قزوین":    "qazvin",
	"زنجان":    "zanjan",
	"سنندج":    "sanandaj",
	"بندرعباس": "bandarabbas",
	"گرگان":    "gorgan",
	"ساری":     "sari",
	"بیرجند":   "birjand",
	"بوشهر":    "bushehr",
	"ایلام":    "ilam",
	"سمنان":    "semnan",
	"خرم‌آباد":  "khorramabad",
	"یاسوج":    "yasuj",
	"شهرکرد":   "shahrekord",
}

// Normalize canonicalizes a place name: trim, check the curated
// transliteration table, else Unicode-decompose, drop non-ASCII, lowercase,
// and strip everything but ASCII letters and digits, whitespace included.
//
// Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if translated, ok := knownTranslations[strings.ToLower(name)]; ok {
		return translated
	}

	folded, _, err := transform.String(transform.Chain(norm.NFKD, transform.RemoveFunc(isMn)), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	for _, r := range folded {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
		// whitespace and punctuation are dropped, not collapsed to a
		// separator: city names become a single contiguous token.
	}
	return b.String()
}

// isMn reports whether r is a nonspacing combining mark, i.e. a diacritic
// left behind after NFKD decomposition.
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// AddTranslation registers an additional curated (script, canonical) pair at
// runtime, used by the seeder when an upstream geocoder reports a
// transliteration the curated table does not yet know.
func AddTranslation(script, canonical string) {
	knownTranslations[strings.ToLower(script)] = strings.ToLower(canonical)
}
