package utils

import (
	"fmt"
	"regexp"
)

// CNPJLength is the number of digits in a normalized CNPJ
const CNPJLength = 14

var (
	nonDigit = regexp.MustCompile(`\D`)

	firstCheckWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	secondCheckWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// CleanCNPJ removes all non-numeric characters from CNPJ.
// The result may be shorter than 14 digits when the input is malformed.
func CleanCNPJ(cnpj string) string {
	return nonDigit.ReplaceAllString(cnpj, "")
}

// FormatCNPJ formats CNPJ with dots, slash and dash (XX.XXX.XXX/XXXX-XX)
func FormatCNPJ(cnpj string) string {
	cleaned := CleanCNPJ(cnpj)
	if len(cleaned) != CNPJLength {
		return cnpj // Return original if invalid length
	}

	return cleaned[:2] + "." + cleaned[2:5] + "." + cleaned[5:8] + "/" + cleaned[8:12] + "-" + cleaned[12:14]
}

// IsValidCNPJ validates an already normalized CNPJ using the official algorithm.
// Formatting characters are not accepted here, call CleanCNPJ first.
func IsValidCNPJ(cnpj string) bool {
	if len(cnpj) != CNPJLength {
		return false
	}

	// Check if all digits are the same
	if isAllSameDigit(cnpj) {
		return false
	}

	digits, ok := toDigits(cnpj)
	if !ok {
		return false
	}

	first := calculateCheckDigit(digits[:12], firstCheckWeights)
	if first != digits[12] {
		return false
	}

	second := calculateCheckDigit(digits[:13], secondCheckWeights)
	return second == digits[13]
}

// NormalizeCNPJ normalizes CNPJ by cleaning and validating
func NormalizeCNPJ(cnpj string) (string, bool) {
	cleaned := CleanCNPJ(cnpj)
	return cleaned, IsValidCNPJ(cleaned)
}

// CalculateCheckDigits returns the two check digits for a 12 digit CNPJ base
func CalculateCheckDigits(base string) (string, error) {
	if len(base) != 12 {
		return "", fmt.Errorf("cnpj base must have 12 digits, got %d", len(base))
	}

	digits, ok := toDigits(base)
	if !ok {
		return "", fmt.Errorf("cnpj base must contain only digits: %q", base)
	}

	first := calculateCheckDigit(digits, firstCheckWeights)
	digits = append(digits, first)
	second := calculateCheckDigit(digits, secondCheckWeights)

	return fmt.Sprintf("%d%d", first, second), nil
}

// CNPJInfo holds information about a CNPJ
type CNPJInfo struct {
	Original  string `json:"cnpj"`
	Cleaned   string `json:"normalizado"`
	Formatted string `json:"formatado,omitempty"`
	Valid     bool   `json:"valido"`
}

// AnalyzeCNPJ analyzes a CNPJ string and returns detailed information
func AnalyzeCNPJ(cnpj string) CNPJInfo {
	cleaned, valid := NormalizeCNPJ(cnpj)
	formatted := ""

	if valid {
		formatted = FormatCNPJ(cleaned)
	}

	return CNPJInfo{
		Original:  cnpj,
		Cleaned:   cleaned,
		Formatted: formatted,
		Valid:     valid,
	}
}

// isAllSameDigit checks if all characters in the string are the same
func isAllSameDigit(s string) bool {
	if len(s) == 0 {
		return false
	}

	first := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}

func toDigits(s string) ([]int, bool) {
	digits := make([]int, len(s), len(s)+1)
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, false
		}
		digits[i] = int(s[i] - '0')
	}
	return digits, true
}

// calculateCheckDigit calculates check digit using given weights
func calculateCheckDigit(digits []int, weights []int) int {
	sum := 0
	for i, digit := range digits {
		sum += digit * weights[i]
	}

	remainder := sum % 11
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}
