package transformers

import (
	"strconv"
	"strings"
)

// StringToNumber converts a decimal string to int64 and back.
const StringToNumber = "StringToNumber"

// Register installs the built-in transformers into Default.
func Register() {
	RegisterInto(Default)
}

// RegisterInto installs the built-in transformers into r.
func RegisterInto(r *Registry) {
	SetReversibleValueTransformer(r, StringToNumber, stringToNumber, numberToString)
}

// stringToNumber reads the leading decimal integer of s, ignoring leading
// whitespace. Strings without one convert to 0; out of range values clamp.
func stringToNumber(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\n\r")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, true
	}

	// on overflow ParseInt returns the clamped value
	n, _ := strconv.ParseInt(s[:end], 10, 64)
	return n, true
}

func numberToString(n int64) (string, bool) {
	return strconv.FormatInt(n, 10), true
}
