package workflow

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/pkg/utils"
)

// DefaultCurrency is used when a claim omits its currency
const DefaultCurrency = "USD"

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateAmount checks an amount is positive with at most two decimals
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return entity.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return entity.NewValidationError("amount", "at most two decimal places are allowed")
	}
	return nil
}

// NormalizeCurrency upper-cases a currency code, defaulting an empty one
func NormalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency, nil
	}
	if !currencyPattern.MatchString(currency) {
		return "", entity.NewValidationError("currency", "%q is not a 3-letter code", currency)
	}
	return currency, nil
}

// ValidateCategory requires a non-blank category and returns it trimmed
func ValidateCategory(category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", entity.NewValidationError("category", "is required")
	}
	return category, nil
}

// NormalizeDescription strips control characters and surrounding whitespace
func NormalizeDescription(description string) string {
	return utils.SanitizeString(description)
}

func (in *CreateExpenseInput) normalize() error {
	if err := ValidateAmount(in.Amount); err != nil {
		return err
	}

	currency, err := NormalizeCurrency(in.Currency)
	if err != nil {
		return err
	}
	in.Currency = currency

	category, err := ValidateCategory(in.Category)
	if err != nil {
		return err
	}
	in.Category = category

	in.Description = NormalizeDescription(in.Description)
	if in.ReceiptURL != nil && strings.TrimSpace(*in.ReceiptURL) == "" {
		in.ReceiptURL = nil
	}
	return nil
}
