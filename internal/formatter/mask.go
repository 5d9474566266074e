// Package formatter holds the input masks and validators used by the checkout
// forms. Every function is pure and cheap enough to run on each keystroke.
package formatter

import (
	"strings"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
)

const (
	cpfDigits        = 11
	cnpjDigits       = 14
	phoneDigits      = 11
	postalCodeDigits = 8
	cardDigits       = 16
	expiryDigits     = 4
	cvvDigits        = 4
)

// Digits returns only the ASCII digits of v.
func Digits(v string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, v)
}

func truncate(digits string, max int) string {
	if len(digits) > max {
		return digits[:max]
	}
	return digits
}

// group splits digits at the given group sizes and joins the pieces with the
// separators. A separator is only written when a digit follows it, so partial
// input such as "1234" renders as "123.4" and never as "123.4.".
func group(digits string, sizes []int, seps []string) string {
	var b strings.Builder
	pos := 0
	for i, size := range sizes {
		if pos >= len(digits) {
			break
		}
		if i > 0 {
			b.WriteString(seps[i-1])
		}
		end := pos + size
		if end > len(digits) {
			end = len(digits)
		}
		b.WriteString(digits[pos:end])
		pos = end
	}
	return b.String()
}

// FormatCPF masks v as 000.000.000-00.
func FormatCPF(v string) string {
	d := truncate(Digits(v), cpfDigits)
	return group(d, []int{3, 3, 3, 2}, []string{".", ".", "-"})
}

// FormatCNPJ masks v as 00.000.000/0000-00.
func FormatCNPJ(v string) string {
	d := truncate(Digits(v), cnpjDigits)
	return group(d, []int{2, 3, 3, 4, 2}, []string{".", ".", "/", "-"})
}

// FormatDocument picks the CPF mask up to 11 digits and the CNPJ mask above.
func FormatDocument(v string) string {
	if len(Digits(v)) <= cpfDigits {
		return FormatCPF(v)
	}
	return FormatCNPJ(v)
}

// DetectPersonType is a function of the digit count only.
func DetectPersonType(v string) domain.PersonType {
	if len(Digits(v)) > cpfDigits {
		return domain.PersonOrganization
	}
	return domain.PersonIndividual
}

// FormatPhone masks v as (00) 0000-0000, or (00) 00000-0000 for mobiles.
func FormatPhone(v string) string {
	d := truncate(Digits(v), phoneDigits)
	if len(d) <= 2 {
		return d
	}
	local := 4
	if len(d) == phoneDigits {
		local = 5
	}
	return "(" + d[:2] + ") " + group(d[2:], []int{local, 4}, []string{"-"})
}

// FormatPostalCode masks v as 00000-000.
func FormatPostalCode(v string) string {
	d := truncate(Digits(v), postalCodeDigits)
	return group(d, []int{5, 3}, []string{"-"})
}

// FormatCardNumber masks v as four space separated groups of four digits.
func FormatCardNumber(v string) string {
	d := truncate(Digits(v), cardDigits)
	return group(d, []int{4, 4, 4, 4}, []string{" ", " ", " "})
}

// FormatExpiry masks v as MM/YY.
func FormatExpiry(v string) string {
	d := truncate(Digits(v), expiryDigits)
	return group(d, []int{2, 2}, []string{"/"})
}

// FormatSecurityCode keeps at most four digits.
func FormatSecurityCode(v string) string {
	return truncate(Digits(v), cvvDigits)
}

// Mask applies the mask registered under kind. ok is false for unknown kinds.
func Mask(kind, v string) (masked string, ok bool) {
	fn, ok := masks[kind]
	if !ok {
		return "", false
	}
	return fn(v), true
}

var masks = map[string]func(string) string{
	"document":    FormatDocument,
	"cpf":         FormatCPF,
	"cnpj":        FormatCNPJ,
	"phone":       FormatPhone,
	"postal-code": FormatPostalCode,
	"card-number": FormatCardNumber,
	"expiry":      FormatExpiry,
	"cvv":         FormatSecurityCode,
}
