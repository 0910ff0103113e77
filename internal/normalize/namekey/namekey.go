// Package namekey derives canonical keys and fuzzy candidate keys from free
// text entity names.
package namekey

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stopwords are dropped from the front of a token sequence when generating
// candidate keys ("de la farine" -> "farine").
var Stopwords = map[string]bool{
	"de": true, "du": true, "des": true, "d": true,
	"la": true, "le": true, "les": true, "l": true,
	"un": true, "une": true, "quelques": true,
	"a": true, "an": true, "the": true, "of": true, "some": true,
}

// SingularExceptions are tokens whose trailing s/x is not a plural mark.
// Extend this table as false positives show up.
var SingularExceptions = map[string]bool{
	"ananas": true, "anchois": true, "brebis": true, "cassis": true,
	"couscous": true, "frais": true, "gras": true, "houmous": true,
	"hummus": true, "mais": true, "noix": true, "pois": true,
	"radis": true, "riz": true, "jus": true, "tapas": true,
	"prix": true, "paris": true, "citrus": true, "molasses": true,
	"swiss": true,
}

var ligatures = strings.NewReplacer("œ", "oe", "æ", "ae", "ß", "ss")

// ToKey lowercases name, strips diacritics and collapses every run of
// non-alphanumeric characters into a single hyphen. ToKey is idempotent.
func ToKey(name string) string {
	s := ligatures.Replace(strings.ToLower(name))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	pendingHyphen := false
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Tokens splits a key produced by ToKey into its hyphen-separated tokens.
func Tokens(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, "-")
}

// Singularize applies the plural-stripping heuristic to one token. It is
// approximate: "chevaux" becomes "chevau".
func Singularize(token string) string {
	if SingularExceptions[token] || len([]rune(token)) <= 3 {
		return token
	}
	switch {
	case strings.HasSuffix(token, "aux"):
		return strings.TrimSuffix(token, "x")
	case strings.HasSuffix(token, "x"), strings.HasSuffix(token, "s"):
		return token[:len(token)-1]
	}
	return token
}

// ToCandidateKeys returns the ordered, de-duplicated list of keys to try when
// matching name: the exact key first, then stopword-stripped and
// singularized variants.
func ToCandidateKeys(name string) []string {
	key := ToKey(name)
	if key == "" {
		return nil
	}
	tokens := Tokens(key)
	stripped := stripLeadingStopwords(tokens)

	lastSingular := append([]string(nil), tokens...)
	lastSingular[len(lastSingular)-1] = Singularize(lastSingular[len(lastSingular)-1])

	candidates := []string{
		key,
		strings.Join(stripped, "-"),
		strings.Join(lastSingular, "-"),
		strings.Join(singularizeAll(tokens), "-"),
		strings.Join(singularizeAll(stripped), "-"),
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// DisplayName is the name a new entity is stored under: leading articles
// and elisions are dropped and every word is singularized
// ("des pommes" -> "pomme", "d'huile" -> "huile").
func DisplayName(name string) string {
	words := strings.Fields(name)
	for len(words) > 1 && Stopwords[ToKey(words[0])] {
		words = words[1:]
	}
	if len(words) == 0 {
		return ""
	}
	words[0] = stripElision(words[0])
	for i, w := range words {
		words[i] = singularWord(w)
	}
	return strings.Join(words, " ")
}

func stripElision(word string) string {
	for _, sep := range []string{"'", "’"} {
		if before, after, ok := strings.Cut(word, sep); ok && after != "" && Stopwords[ToKey(before)] {
			return after
		}
	}
	return word
}

func singularWord(word string) string {
	k := ToKey(word)
	if Singularize(k) == k {
		return word
	}
	switch word[len(word)-1] {
	case 's', 'x', 'S', 'X':
		return word[:len(word)-1]
	}
	return word
}

// stripLeadingStopwords keeps at least one token.
func stripLeadingStopwords(tokens []string) []string {
	i := 0
	for i < len(tokens)-1 && Stopwords[tokens[i]] {
		i++
	}
	return tokens[i:]
}

func singularizeAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = Singularize(t)
	}
	return out
}
