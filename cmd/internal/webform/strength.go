package webform

// Strength is a password strength tier.
type Strength int

const (
	// StrengthNone is the zero value: no password has been measured yet.
	StrengthNone Strength = iota
	StrengthWeak
	StrengthMedium
	StrengthStrong
)

func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "weak"
	case StrengthMedium:
		return "medium"
	case StrengthStrong:
		return "strong"
	default:
		return ""
	}
}

// Label is the text shown next to the strength meter.
func (s Strength) Label() string {
	switch s {
	case StrengthWeak:
		return "Weak password"
	case StrengthMedium:
		return "Medium password"
	case StrengthStrong:
		return "Strong password"
	default:
		return ""
	}
}

// StrengthScore counts the criteria pw meets: length >= 6, length >= 10,
// both ASCII letter cases, an ASCII digit, and any other character. Length
// is measured in UTF-16 units.
func StrengthScore(pw string) int {
	var lower, upper, digit, other bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}

	n := textLength(pw)
	score := 0
	if n >= 6 {
		score++
	}
	if n >= 10 {
		score++
	}
	if lower && upper {
		score++
	}
	if digit {
		score++
	}
	if other {
		score++
	}
	return score
}

// PasswordStrength maps pw to a tier: weak below 2, medium 2-3, strong 4+.
// Every input, the empty string included, lands in one of the three tiers.
func PasswordStrength(pw string) Strength {
	switch score := StrengthScore(pw); {
	case score < 2:
		return StrengthWeak
	case score < 4:
		return StrengthMedium
	default:
		return StrengthStrong
	}
}
