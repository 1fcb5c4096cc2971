package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// ErrMalformedCondition is returned for a condition that is not
// "<amount|category> <op> <literal>"
var ErrMalformedCondition = errors.New("malformed rule condition")

// Field is an expense attribute a condition can compare
type Field string

const (
	FieldAmount   Field = "amount"
	FieldCategory Field = "category"
)

// Operator is a comparison operator
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

var operators = map[Operator]bool{
	OpGreater:      true,
	OpGreaterEqual: true,
	OpLess:         true,
	OpLessEqual:    true,
	OpEqual:        true,
	OpNotEqual:     true,
}

var conditionPattern = regexp.MustCompile(`^\s*(amount|category)\s*([<>=!]+)\s*(.+?)\s*$`)

// Condition is a parsed rule condition
type Condition struct {
	Field    Field
	Operator Operator
	Literal  string

	amount decimal.Decimal
}

// ParseCondition parses a stored condition string. Nothing in it is ever
// executed; anything outside the grammar yields ErrMalformedCondition.
func ParseCondition(raw string) (Condition, error) {
	parts := conditionPattern.FindStringSubmatch(raw)
	if parts == nil {
		return Condition{}, fmt.Errorf("%w: %q", ErrMalformedCondition, raw)
	}

	cond := Condition{
		Field:    Field(parts[1]),
		Operator: Operator(parts[2]),
		Literal:  unquote(parts[3]),
	}

	if !operators[cond.Operator] {
		return Condition{}, fmt.Errorf("%w: unsupported operator %q", ErrMalformedCondition, parts[2])
	}
	if cond.Literal == "" {
		return Condition{}, fmt.Errorf("%w: empty literal in %q", ErrMalformedCondition, raw)
	}

	if cond.Field == FieldAmount {
		amount, err := decimal.NewFromString(cond.Literal)
		if err != nil {
			return Condition{}, fmt.Errorf("%w: amount literal %q is not a number", ErrMalformedCondition, cond.Literal)
		}
		cond.amount = amount
	}

	return cond, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, `'"`)
	s = strings.TrimRight(s, `'"`)
	return s
}

// Matches applies the condition to an expense. Amounts compare numerically,
// categories compare as case-sensitive strings.
func (c Condition) Matches(expense *entity.Expense) bool {
	var cmp int
	switch c.Field {
	case FieldAmount:
		cmp = expense.Amount.Cmp(c.amount)
	case FieldCategory:
		cmp = strings.Compare(expense.Category, c.Literal)
	default:
		return false
	}

	switch c.Operator {
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	}
	return false
}

func (c Condition) String() string {
	if c.Field == FieldCategory {
		return fmt.Sprintf("%s %s '%s'", c.Field, c.Operator, c.Literal)
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Operator, c.Literal)
}
