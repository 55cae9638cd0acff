// Package textnorm rewrites written text into the spoken form the voice model
// reads best: abbreviations and integers are spelled out, citation markers are
// dropped, and typography is reduced to plain ASCII punctuation.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSpelledNumber is the largest integer spelled out in words.
const MaxSpelledNumber = 999999

const (
	thousand = 1000
	hundred  = 100
	ten      = 10
	twenty   = 20
)

var (
	urlPattern      = regexp.MustCompile(`https?://\S+|[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	numberPattern   = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
	citationPattern = regexp.MustCompile(`\[\d+\]|[¹²³⁴⁵⁶⁷⁸⁹⁰]+|\([^)]*\d{4}[^)]*\)`)
	spacePattern    = regexp.MustCompile(`\s+`)
	spaceBeforeStop = regexp.MustCompile(`\s+([.,!?;:])`)
)

var abbreviations = strings.NewReplacer(
	"Mr.", "Mister",
	"Mrs.", "Misses",
	"Dr.", "Doctor",
	"St.", "Saint",
	"Ltd.", "Limited",
	"Inc.", "Incorporated",
	"e.g.", "for example",
	"i.e.", "that is",
)

var typography = strings.NewReplacer(
	"—", ", ",
	"–", "-",
	"‒", "-",
	"…", "...",
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

var (
	ones = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
)

// Normalize returns text in spoken form. URLs and e-mail addresses are kept
// verbatim. A non-empty result always ends with '.', '!' or '?'.
func Normalize(text string) string {
	var builder strings.Builder

	last := 0

	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		builder.WriteString(normalizeProse(text[last:loc[0]]))
		builder.WriteString(text[loc[0]:loc[1]])

		last = loc[1]
	}

	builder.WriteString(normalizeProse(text[last:]))

	out := spacePattern.ReplaceAllString(builder.String(), " ")
	out = strings.TrimSpace(spaceBeforeStop.ReplaceAllString(out, "$1"))

	return terminate(out)
}

func normalizeProse(text string) string {
	text = citationPattern.ReplaceAllString(text, "")
	text = abbreviations.Replace(text)
	text = typography.Replace(text)
	text = numberPattern.ReplaceAllStringFunc(text, spellNumeral)

	return collapsePunctuation(text)
}

// spellNumeral spells "1,250.75" as "one thousand two hundred fifty point
// seven five".
func spellNumeral(numeral string) string {
	whole, fraction, _ := strings.Cut(strings.ReplaceAll(numeral, ",", ""), ".")

	n, err := strconv.Atoi(whole)
	if err != nil {
		return numeral
	}

	words := SpellNumber(n)
	if fraction == "" {
		return words
	}

	digits := make([]string, 0, len(fraction))
	for _, digit := range fraction {
		digits = append(digits, ones[digit-'0'])
	}

	return words + " point " + strings.Join(digits, " ")
}

// collapsePunctuation keeps the first of a run of identical punctuation marks,
// except for the dots of an ellipsis.
func collapsePunctuation(text string) string {
	var (
		builder  strings.Builder
		previous rune
	)

	for _, r := range text {
		if r == previous && r != '.' && unicode.IsPunct(r) {
			continue
		}

		builder.WriteRune(r)

		previous = r
	}

	return builder.String()
}

func terminate(text string) string {
	if text == "" {
		return text
	}

	last, _ := utf8.DecodeLastRuneInString(text)

	switch last {
	case '.', '!', '?':
		return text
	case ',', ';', ':', '-':
		return strings.TrimRightFunc(text[:len(text)-1], unicode.IsSpace) + "."
	default:
		return text + "."
	}
}

// SpellNumber writes n in English words. Numbers outside [0, MaxSpelledNumber]
// are returned as digits.
func SpellNumber(n int) string {
	if n < 0 || n > MaxSpelledNumber {
		return strconv.Itoa(n)
	}

	if n >= thousand {
		words := SpellNumber(n/thousand) + " thousand"
		if n%thousand > 0 {
			words += " " + SpellNumber(n%thousand)
		}

		return words
	}

	if n >= hundred {
		words := ones[n/hundred] + " hundred"
		if n%hundred > 0 {
			words += " " + SpellNumber(n%hundred)
		}

		return words
	}

	if n < twenty {
		return ones[n]
	}

	words := tens[n/ten]
	if n%ten > 0 {
		words += " " + ones[n%ten]
	}

	return words
}
