package purchase

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
)

// FeeCalculator evaluates the configured fee expression for a purchase.
// The expression sees total, unit_price and quantity, e.g. "total * 0.05".
type FeeCalculator struct {
	expr *govaluate.EvaluableExpression
}

// NewFeeCalculator parses expression. An empty expression always yields zero.
func NewFeeCalculator(expression string) (*FeeCalculator, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return &FeeCalculator{}, nil
	}
	expr, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid fee expression: %w", err)
	}
	return &FeeCalculator{expr: expr}, nil
}

// Fee returns the fee amount rounded to cents.
func (f *FeeCalculator) Fee(total, unitPrice decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if f == nil || f.expr == nil {
		return decimal.Zero, nil
	}
	result, err := f.expr.Evaluate(map[string]interface{}{
		"total":      total.InexactFloat64(),
		"unit_price": unitPrice.InexactFloat64(),
		"quantity":   float64(quantity),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to evaluate fee: %w", err)
	}
	v, ok := result.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("fee expression returned %T, want number", result)
	}
	fee := decimal.NewFromFloat(v).Round(2)
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("fee expression returned negative amount %s", fee)
	}
	return fee, nil
}
