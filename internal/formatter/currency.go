package formatter

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount the way pt-BR displays BRL: "R$ 1.234,56".
// The space after the symbol is a non-breaking space. Display only.
func FormatCurrency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	return sign + "R$\u00a0" + b.String() + "," + frac
}
