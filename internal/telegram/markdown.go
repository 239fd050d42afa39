package telegram

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage splits a message into chunks of maxLen characters,
// trying to split at newlines when possible.
func SplitMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if utf8.RuneCountInString(text) <= maxLen {
			parts = append(parts, text)
			break
		}

		runes := []rune(text)
		splitAt := maxLen

		// Prefer a line break in the second half of the chunk
		chunk := runes[:maxLen]
		for i := len(chunk) - 1; i > maxLen/2; i-- {
			if chunk[i] == '\n' {
				splitAt = i + 1
				break
			}
		}

		parts = append(parts, string(runes[:splitAt]))
		text = string(runes[splitAt:])
	}

	return parts
}

// Truncate shortens text to at most maxLen characters, marking the cut
// with an ellipsis.
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLen-1]) + "…"
}

// FixMarkdown closes unbalanced code spans and emphasis markers so a split
// message still parses as Markdown.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}
	return closeInline(text)
}

func closeInline(text string) string {
	var b strings.Builder
	inBlock := false
	var open []rune

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i] == '`' && runes[i+1] == '`' && runes[i+2] == '`' {
			inBlock = !inBlock
			b.WriteString("```")
			i += 2
			continue
		}

		r := runes[i]
		if !inBlock {
			switch {
			case r == '\\' && i+1 < len(runes):
				b.WriteRune(r)
				b.WriteRune(runes[i+1])
				i++
				continue
			case r == '`' || ((r == '*' || r == '_') && !inCode(open)):
				if n := len(open); n > 0 && open[n-1] == r {
					open = open[:n-1]
				} else {
					open = append(open, r)
				}
			}
		}
		b.WriteRune(r)
	}

	for i := len(open) - 1; i >= 0; i-- {
		b.WriteRune(open[i])
	}
	return b.String()
}

func inCode(open []rune) bool {
	return len(open) > 0 && open[len(open)-1] == '`'
}
