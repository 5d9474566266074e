package formatter

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var stateCodes = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true, "DF": true,
	"ES": true, "GO": true, "MA": true, "MT": true, "MS": true, "MG": true, "PA": true,
	"PB": true, "PR": true, "PE": true, "PI": true, "RJ": true, "RN": true, "RS": true,
	"RO": true, "RR": true, "SC": true, "SP": true, "SE": true, "TO": true,
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

func repeated(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}

// checkDigit maps a weighted sum to its check digit: remainders 0 and 1
// give 0, anything else 11-r.
func checkDigit(sum int) int {
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// ValidateCPF checks the two CPF check digits. Formatting is ignored.
func ValidateCPF(v string) bool {
	d := Digits(v)
	if len(d) != cpfDigits || repeated(d) {
		return false
	}
	for pos := 9; pos <= 10; pos++ {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += int(d[i]-'0') * (pos + 1 - i)
		}
		if checkDigit(sum) != int(d[pos]-'0') {
			return false
		}
	}
	return true
}

// ValidateCNPJ checks the two CNPJ check digits. Formatting is ignored.
func ValidateCNPJ(v string) bool {
	d := Digits(v)
	if len(d) != cnpjDigits || repeated(d) {
		return false
	}
	for pos, weights := range map[int][]int{12: cnpjWeights1, 13: cnpjWeights2} {
		sum := 0
		for i, w := range weights {
			sum += int(d[i]-'0') * w
		}
		if checkDigit(sum) != int(d[pos]-'0') {
			return false
		}
	}
	return true
}

// ValidateDocument validates an 11-digit CPF or a 14-digit CNPJ.
func ValidateDocument(v string) bool {
	switch len(Digits(v)) {
	case cpfDigits:
		return ValidateCPF(v)
	case cnpjDigits:
		return ValidateCNPJ(v)
	default:
		return false
	}
}

// ValidateEmail is intentionally permissive: one @, no whitespace, a dotted domain.
func ValidateEmail(v string) bool {
	return emailPattern.MatchString(v)
}

// ValidatePhone accepts landlines (10 digits) and mobiles (11 digits).
func ValidatePhone(v string) bool {
	n := len(Digits(v))
	return n >= 10 && n <= phoneDigits
}

// ValidatePostalCode requires exactly 8 digits (CEP).
func ValidatePostalCode(v string) bool {
	return len(Digits(v)) == postalCodeDigits
}

// ValidateStateCode accepts the 27 federative unit codes, case-insensitively.
func ValidateStateCode(v string) bool {
	return stateCodes[strings.ToUpper(strings.TrimSpace(v))]
}
