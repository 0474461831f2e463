package core

import (
	_ "embed"
	"strings"
	"unicode"

	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/thoas/go-funk"
	"golang.org/x/text/language"
)

//go:embed data/words.txt
var defaultWords string

// DefaultLocaleConstants locale strings commonly embedded in QR payloads
var DefaultLocaleConstants = []string{"zh-CN"}

// NoiseFilter drops QR payload values that cannot be a session token
type NoiseFilter struct {
	words   map[string]struct{}
	maxLen  int
	locales []string
}

// NewNoiseFilter build a filter from the embedded word list plus an optional dictionary file
func NewNoiseFilter(dictionaryFile string, locales []string) *NoiseFilter {
	n := &NoiseFilter{words: make(map[string]struct{})}
	n.addWords(strings.Split(defaultWords, "\n"))
	if dictionaryFile != "" {
		extra := utils.ReadingLines(dictionaryFile)
		utils.DebugF("Load %v words from %v", len(extra), dictionaryFile)
		n.addWords(extra)
	}
	if len(locales) == 0 {
		locales = DefaultLocaleConstants
	}
	n.locales = locales
	return n
}

func (n *NoiseFilter) addWords(words []string) {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		n.words[w] = struct{}{}
		if len(w) > n.maxLen {
			n.maxLen = len(w)
		}
	}
}

// IsEnglishPhrase every letter run splits into dictionary words, digits never do
func (n *NoiseFilter) IsEnglishPhrase(phrase string) bool {
	if strings.IndexFunc(phrase, unicode.IsDigit) >= 0 {
		return false
	}
	runs := strings.FieldsFunc(phrase, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(runs) == 0 {
		return false
	}
	for _, run := range runs {
		if !n.segmentable(strings.ToLower(run)) {
			return false
		}
	}
	return true
}

func (n *NoiseFilter) segmentable(s string) bool {
	// reach[i] means s[:i] splits into words
	reach := make([]bool, len(s)+1)
	reach[0] = true
	for i := 1; i <= len(s); i++ {
		for j := i - 1; j >= 0 && i-j <= n.maxLen; j-- {
			if !reach[j] {
				continue
			}
			if _, ok := n.words[s[j:i]]; ok {
				reach[i] = true
				break
			}
		}
	}
	return reach[len(s)]
}

// IsLocaleConstant configured locale constant or a well formed region tag like en-US
func (n *NoiseFilter) IsLocaleConstant(value string) bool {
	for _, l := range n.locales {
		if strings.EqualFold(l, value) {
			return true
		}
	}
	if !strings.ContainsAny(value, "-_") {
		return false
	}
	tag, err := language.Parse(strings.ReplaceAll(value, "_", "-"))
	if err != nil {
		return false
	}
	_, conf := tag.Region()
	return conf == language.Exact
}

// IsNoise value is a phrase, too short, or a locale constant
func (n *NoiseFilter) IsNoise(value string) bool {
	if len([]rune(value)) <= 2 {
		return true
	}
	return n.IsEnglishPhrase(value) || n.IsLocaleConstant(value)
}

// Filter keep token candidates that look like opaque identifiers
func (n *NoiseFilter) Filter(candidates []TokenCandidate) []TokenCandidate {
	kept := funk.Filter(candidates, func(c TokenCandidate) bool {
		return !n.IsNoise(c.Value)
	}).([]TokenCandidate)
	return kept
}
