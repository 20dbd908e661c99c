// Package pin generates and normalizes the short display codes that
// identify joinable collaboration sessions.
package pin

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/letsmanuel/webnest-sub001/internal/model"
)

// Length is the number of symbols in a PIN.
const Length = 6

// Alphabets by style.
var (
	standardAlphabet = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	numbersAlphabet  = []rune("0123456789")
	emojiAlphabet    = []rune("🐶🐱🦊🐼🐸🐙🦄🐝🌵🍀🍉🍋🥝🌮🎲🎯🎸🚀🌙⭐")
)

// Generate returns a random PIN drawn from the style's alphabet.
func Generate(style model.PinStyle) (string, error) {
	alphabet, err := alphabetFor(style)
	if err != nil {
		return "", err
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]rune, Length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate pin: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// Normalize uppercases a PIN so lookup is case-insensitive. Emoji and
// digit symbols pass through unchanged.
func Normalize(pin string) string {
	return strings.ToUpper(strings.TrimSpace(pin))
}

// Validate reports whether every symbol of a normalized PIN belongs to
// the style's alphabet and the length is exact.
func Validate(pin string, style model.PinStyle) bool {
	alphabet, err := alphabetFor(style)
	if err != nil {
		return false
	}
	runes := []rune(pin)
	if len(runes) != Length {
		return false
	}
	for _, r := range runes {
		if !containsRune(alphabet, r) {
			return false
		}
	}
	return true
}

func alphabetFor(style model.PinStyle) ([]rune, error) {
	switch style {
	case model.PinStyleStandard, "":
		return standardAlphabet, nil
	case model.PinStyleNumbers:
		return numbersAlphabet, nil
	case model.PinStyleEmoji:
		return emojiAlphabet, nil
	default:
		return nil, fmt.Errorf("unknown pin style %q", style)
	}
}

func containsRune(alphabet []rune, r rune) bool {
	for _, a := range alphabet {
		if a == r {
			return true
		}
	}
	return false
}
