package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPrice is returned when a price string cannot be parsed into
// minor currency units. The order is left unchanged.
var ErrInvalidPrice = errors.New("invalid price")

// maxPrice bounds a quote at one million currency units. ParseFloat also
// accepts "inf", "nan" and exponents far beyond int64, and converting those
// would overflow the cents value.
const maxPrice = 1e6

// ParsePrice converts a decimal price string like "12,50" or "12.50" into
// integer cents. Whitespace is stripped and both comma and dot are accepted
// as the fractional separator. Negative, non-numeric, non-finite or
// out-of-range input is rejected.
func ParsePrice(input string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(input), " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value > maxPrice {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, input)
	}
	return int64(math.Round(value * 100)), nil
}

// FormatPrice renders integer cents as a localized decimal string.
// EUR uses comma as decimal separator and dot for thousands ("1.234,56 €");
// any other currency uses a plain decimal format with the code appended
// ("1,234.56 USD"). A nil price renders as the empty string.
func FormatPrice(priceCents *int64, currency string) string {
	if priceCents == nil {
		return ""
	}
	cents := *priceCents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	if strings.EqualFold(currency, "EUR") {
		return fmt.Sprintf("%s%s,%02d €", sign, groupDigits(whole, "."), frac)
	}
	return fmt.Sprintf("%s%s.%02d %s", sign, groupDigits(whole, ","), frac, currency)
}

// groupDigits inserts sep between every group of three digits.
func groupDigits(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
