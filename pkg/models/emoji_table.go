package models

import (
	_ "embed"
	"strings"
	"sync"
)

//go:embed emoji_table.txt
var emojiTable string

var (
	emojiSetOnce sync.Once
	emojiSet     map[string]bool
)

// ValidUnicodeEmoji reports whether the codepoint sequence is on the static
// emoji allow-list. The table is parsed once on first use.
func ValidUnicodeEmoji(sequence string) bool {
	emojiSetOnce.Do(func() {
		emojiSet = make(map[string]bool)
		for _, line := range strings.Split(emojiTable, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				emojiSet[line] = true
			}
		}
	})
	// Variation selectors and joiners don't change which emoji it is.
	stripped := strings.Map(func(r rune) rune {
		if r == 0xFE0F || r == 0x200D {
			return -1
		}
		return r
	}, sequence)
	return emojiSet[sequence] || emojiSet[stripped]
}
