package console

import "strings"

const fence = "```"

// Normalize strips chat code decoration from text. A triple-fenced block
// loses its first and last line (the fence, with any language tag); anything
// else has backticks and surrounding whitespace trimmed.
func Normalize(text string) string {
	if len(text) >= 2*len(fence) && strings.HasPrefix(text, fence) && strings.HasSuffix(text, fence) {
		lines := strings.Split(text, "\n")
		if len(lines) < 2 {
			return ""
		}
		return strings.Join(lines[1:len(lines)-1], "\n")
	}
	return strings.Trim(text, "` \n")
}
