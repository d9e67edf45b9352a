package websession

import (
	"strings"
	"unicode/utf8"
)

// FallbackInitials is shown when the user has no usable name.
const FallbackInitials = "U"

// ComputeInitials derives one or two display initials from a name.
//
// "Madonna" yields "M", "Ada Lovelace" yields "AL" (first and last word),
// and an empty or blank name yields FallbackInitials.
func ComputeInitials(name string) string {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return FallbackInitials
	case 1:
		return firstUpper(words[0])
	default:
		return firstUpper(words[0]) + firstUpper(words[len(words)-1])
	}
}

func firstUpper(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if size == 0 {
		return ""
	}
	return strings.ToUpper(string(r))
}
