package safety

import (
	"fmt"
	"math"
	"strings"

	"github.com/ducminhle1904/crypto-decision-core/pkg/types"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

func invalid(code, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Valid: false, Code: code, Message: fmt.Sprintf(format, args...)}
}

var ok = ValidationResult{Valid: true}

// Validator checks prices, quantities, symbols and brackets before they reach the risk models
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePrice validates a price value
func (v *Validator) ValidatePrice(price float64, field, symbol string) ValidationResult {
	switch {
	case math.IsNaN(price):
		return invalid("INVALID_PRICE_NAN", "invalid %s for %s: NaN", field, symbol)
	case math.IsInf(price, 0):
		return invalid("INVALID_PRICE_INF", "invalid %s for %s: infinite", field, symbol)
	case price <= 0:
		return invalid("INVALID_PRICE_NON_POSITIVE", "invalid %s %.8f for %s: must be positive", field, price, symbol)
	}
	return ok
}

// ValidateQuantity validates a position or order size
func (v *Validator) ValidateQuantity(quantity float64, symbol string) ValidationResult {
	switch {
	case math.IsNaN(quantity):
		return invalid("INVALID_QUANTITY_NAN", "invalid size for %s: NaN", symbol)
	case math.IsInf(quantity, 0):
		return invalid("INVALID_QUANTITY_INF", "invalid size for %s: infinite", symbol)
	case quantity <= 0:
		return invalid("INVALID_QUANTITY_NON_POSITIVE", "invalid size %.8f for %s: must be positive", quantity, symbol)
	}
	return ok
}

// ValidateSymbol validates a trading symbol
func (v *Validator) ValidateSymbol(symbol string) ValidationResult {
	if strings.TrimSpace(symbol) == "" {
		return invalid("SYMBOL_EMPTY", "symbol cannot be empty")
	}
	if len(symbol) > 32 {
		return invalid("SYMBOL_TOO_LONG", "symbol %q exceeds 32 characters", symbol)
	}
	return ok
}

// ValidateBracket checks that stop and target sit on the correct sides of
// entry for the given position side and that the stop distance is non-zero.
func (v *Validator) ValidateBracket(side types.Side, entry, stop, target float64, symbol string) ValidationResult {
	if res := v.ValidatePrice(stop, "stop_loss", symbol); !res.Valid {
		return invalid("STOP_LOSS_MISSING", "%s", res.Message)
	}
	if stop == entry {
		return invalid("ZERO_RISK_DISTANCE", "stop_loss equals entry %.8f for %s", entry, symbol)
	}
	if side == types.SideLong && stop > entry {
		return invalid("STOP_LOSS_WRONG_SIDE", "long stop_loss %.8f above entry %.8f for %s", stop, entry, symbol)
	}
	if side == types.SideShort && stop < entry {
		return invalid("STOP_LOSS_WRONG_SIDE", "short stop_loss %.8f below entry %.8f for %s", stop, entry, symbol)
	}
	if res := v.ValidatePrice(target, "take_profit", symbol); !res.Valid {
		return invalid("TAKE_PROFIT_MISSING", "%s", res.Message)
	}
	if side == types.SideLong && target <= entry {
		return invalid("TAKE_PROFIT_WRONG_SIDE", "long take_profit %.8f not above entry %.8f for %s", target, entry, symbol)
	}
	if side == types.SideShort && target >= entry {
		return invalid("TAKE_PROFIT_WRONG_SIDE", "short take_profit %.8f not below entry %.8f for %s", target, entry, symbol)
	}
	return ok
}

// ValidateBalance validates a portfolio value or exposure figure
func (v *Validator) ValidateBalance(balance float64, field string) ValidationResult {
	switch {
	case math.IsNaN(balance) || math.IsInf(balance, 0):
		return invalid("BALANCE_NOT_FINITE", "%s must be finite", field)
	case balance < 0:
		return invalid("BALANCE_NEGATIVE", "%s %.2f cannot be negative", field, balance)
	}
	return ok
}
