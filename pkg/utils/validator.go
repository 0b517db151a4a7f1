package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	skuPattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,31}$`)
	userIDChars  = regexp.MustCompile(`^[A-Za-z0-9_.@\-]{1,64}$`)
)

// SanitizeString trims s and removes control characters
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// ValidateSKU checks a stock keeping unit code. An empty SKU is allowed.
func ValidateSKU(sku string) error {
	if sku == "" {
		return nil
	}
	if !skuPattern.MatchString(sku) {
		return fmt.Errorf("invalid SKU format: %s", sku)
	}
	return nil
}

// ValidateUserID checks an identifier passed in request headers
func ValidateUserID(id string) error {
	if !userIDChars.MatchString(id) {
		return fmt.Errorf("invalid user id: %q", id)
	}
	return nil
}

// ValidateQuantity checks a requested line quantity
func ValidateQuantity(qty float64) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive: %g", qty)
	}
	if qty > 1_000_000 {
		return fmt.Errorf("quantity exceeds maximum limit: %g", qty)
	}
	return nil
}

// ValidateUnitCost checks a unit cost in cents
func ValidateUnitCost(cents int64) error {
	if cents < 0 {
		return fmt.Errorf("unit cost cannot be negative: %d", cents)
	}
	return nil
}
