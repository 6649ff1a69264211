// Package tibetan converts Wylie transliteration to Tibetan Unicode.
//
// This is a display helper for group names authored in ASCII. The conversion
// is a bounded replace-until-fixed-point over a longest-match table; it never
// recurses and stops after a fixed iteration cap even on pathological
// input.
package tibetan

import (
	"sort"
	"strings"
)

// maxIterations bounds the fixed-point loop. Real inputs converge in one or
// two passes; the guard exists so malformed bracket nesting cannot loop.
const maxIterations = 32

// Tsheg is the Tibetan syllable delimiter.
const Tsheg = "་"

var consonants = map[string]rune{
	"k": 0x0F40, "kh": 0x0F41, "g": 0x0F42, "ng": 0x0F44,
	"c": 0x0F45, "ch": 0x0F46, "j": 0x0F47, "ny": 0x0F49,
	"t": 0x0F4F, "th": 0x0F50, "d": 0x0F51, "n": 0x0F53,
	"p": 0x0F54, "ph": 0x0F55, "b": 0x0F56, "m": 0x0F58,
	"ts": 0x0F59, "tsh": 0x0F5A, "dz": 0x0F5B, "w": 0x0F5D,
	"zh": 0x0F5E, "z": 0x0F5F, "'": 0x0F60, "y": 0x0F61,
	"r": 0x0F62, "l": 0x0F63, "sh": 0x0F64, "s": 0x0F66,
	"h": 0x0F67, "a": 0x0F68,
}

var vowels = map[string]rune{
	"i": 0x0F72, "u": 0x0F74, "e": 0x0F7A, "o": 0x0F7C,
}

// orderedConsonants lists consonant keys longest first so "tsh" wins over
// "ts" and "t".
var orderedConsonants = func() []string {
	keys := make([]string, 0, len(consonants))
	for key := range consonants {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// FromWylie converts a Wylie string to Tibetan Unicode. Unknown characters
// pass through unchanged, so mixed annotations stay readable. Syllables are
// separated by spaces in the input and by tsheg in the output.
func FromWylie(input string) string {
	input = resolveBrackets(input)

	syllables := strings.Fields(input)
	out := make([]string, 0, len(syllables))
	for _, syllable := range syllables {
		out = append(out, convertSyllable(syllable))
	}
	return strings.Join(out, Tsheg)
}

func convertSyllable(syllable string) string {
	var b strings.Builder
	rest := strings.ToLower(syllable)
	wroteConsonant := false

	for rest != "" {
		if rest[0] == 'a' {
			// The inherent "a" after a consonant has no Unicode mark; a bare
			// "a" is the letter itself.
			if !wroteConsonant {
				b.WriteRune(consonants["a"])
			}
			wroteConsonant = true
			rest = rest[1:]
			continue
		}
		if vowel, ok := vowels[rest[:1]]; ok {
			// A vowel with no consonant base rides on achung "a".
			if !wroteConsonant {
				b.WriteRune(consonants["a"])
			}
			b.WriteRune(vowel)
			wroteConsonant = false
			rest = rest[1:]
			continue
		}

		matched := false
		for _, key := range orderedConsonants {
			if strings.HasPrefix(rest, key) {
				b.WriteRune(consonants[key])
				wroteConsonant = true
				rest = rest[len(key):]
				matched = true
				break
			}
		}
		if !matched {
			b.WriteString(rest[:1])
			rest = rest[1:]
		}
	}
	return b.String()
}

// resolveBrackets repeatedly substitutes "[x]" spans with their inner text
// until no brackets remain or the iteration cap is hit. The source
// format uses brackets for editorial alternates; nesting is rare but legal.
func resolveBrackets(input string) string {
	for i := 0; i < maxIterations; i++ {
		open := strings.IndexByte(input, '[')
		if open < 0 {
			return input
		}
		closing := strings.IndexByte(input[open:], ']')
		if closing < 0 {
			// Unclosed bracket: drop the bracket character and continue.
			input = input[:open] + input[open+1:]
			continue
		}
		inner := input[open+1 : open+closing]
		input = input[:open] + inner + input[open+closing+1:]
	}
	return input
}
