// Package normalize merges raw review fragments into the per-category text
// blocks of a ReviewBundle and strips emoji glyphs from user-written text.
package normalize

import (
	"strings"

	"github.com/mkravtsov/wb-review-scraper/internal/models"
)

// Combined holds the merged text per category.
type Combined struct {
	Advantages    string
	Disadvantages string
	Comments      string
}

// Combine merges fragments in encounter order. Blank fragments are skipped;
// every kept fragment is made to end in terminal punctuation and fragments
// are joined by a single space. Unclassified fragments count as comments.
func Combine(fragments []models.Fragment) Combined {
	var adv, dis, com []string

	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
			text += "."
		}

		switch f.Category {
		case models.CategoryAdvantages:
			adv = append(adv, text)
		case models.CategoryDisadvantages:
			dis = append(dis, text)
		default:
			com = append(com, text)
		}
	}

	return Combined{
		Advantages:    strings.Join(adv, " "),
		Disadvantages: strings.Join(dis, " "),
		Comments:      strings.Join(com, " "),
	}
}

// emojiRanges are the code-point ranges removed by StripEmoji: pictographs,
// symbols, transport glyphs and enclosed alphanumerics. Ordinary Cyrillic
// and Latin text and punctuation fall outside every range.
var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F300, 0x1F5FF}, // symbols and pictographs
	{0x1F680, 0x1F6FF}, // transport and map symbols
	{0x1F700, 0x1F77F}, // alchemical symbols
	{0x1F780, 0x1F7FF}, // geometric shapes extended
	{0x1F800, 0x1F8FF}, // supplemental arrows
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x1FA00, 0x1FA6F}, // chess symbols, extended-A
	{0x1FA70, 0x1FAFF}, // symbols extended-A
	{0x2702, 0x27B0},   // dingbats
	{0x24C2, 0x1F251},  // enclosed characters
}

// StripEmoji removes emoji code points from text. It is pure and idempotent
// and never shrinks a string containing no emoji.
func StripEmoji(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		if isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

func isEmoji(r rune) bool {
	for _, rng := range emojiRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}
