package bill

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"fairshare/internal/extraction"
)

// ErrInvalidField is returned when UpdateField is invoked with a field
// name outside the mutable set. The defined API surface never produces
// one, so hitting it is a programmer error.
var ErrInvalidField = errors.New("invalid item field")

// Mutable item fields accepted by UpdateField
const (
	FieldName    = "name"
	FieldPrice   = "price"
	FieldTaxRate = "taxRate"
	FieldPayer   = "payer"
)

// IDGenerator generates unique item IDs
type IDGenerator interface {
	Generate() string
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// Normalize seeds a Ledger from an extraction result. Each item gets a
// fresh id, name and price are copied verbatim, a tax rate outside
// {0.08, 0.10} falls back to the standard rate, and the payer defaults
// to Shared.
func Normalize(result *extraction.Result, idGen IDGenerator) Ledger {
	if result == nil {
		return Ledger{}
	}
	base := idGen.Generate()
	ledger := make(Ledger, 0, len(result.Items))
	for i, extracted := range result.Items {
		taxRate := extracted.TaxRate
		if !validTaxRate(taxRate) {
			taxRate = StandardTaxRate
		}
		ledger = append(ledger, Item{
			ID:      fmt.Sprintf("item-%s-%d", base, i),
			Name:    extracted.Name,
			Price:   extracted.Price,
			TaxRate: taxRate,
			Payer:   PayerShared,
		})
	}
	return ledger
}

// NewManualItem produces a placeholder item for user-initiated additions
// outside extraction
func NewManualItem(idGen IDGenerator) Item {
	return Item{
		ID:      fmt.Sprintf("manual-%s", idGen.Generate()),
		Name:    "New Item",
		Price:   0,
		TaxRate: StandardTaxRate,
		Payer:   PayerShared,
	}
}

// AddItem returns a new Ledger with a manual item appended
func AddItem(ledger Ledger, idGen IDGenerator) Ledger {
	next := make(Ledger, len(ledger), len(ledger)+1)
	copy(next, ledger)
	return append(next, NewManualItem(idGen))
}

// DeleteItem returns a new Ledger without the item matching id.
// A no-op when the id is not present.
func DeleteItem(ledger Ledger, id string) Ledger {
	next := make(Ledger, 0, len(ledger))
	for _, item := range ledger {
		if item.ID != id {
			next = append(next, item)
		}
	}
	return next
}

// UpdateField returns a new Ledger with the named field of the item
// matching id replaced. Unknown ids are a no-op; unknown fields return
// ErrInvalidField. Relative order of items is preserved.
func UpdateField(ledger Ledger, id string, field string, value any) (Ledger, error) {
	switch field {
	case FieldName, FieldPrice, FieldTaxRate, FieldPayer:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}

	next := make(Ledger, len(ledger))
	copy(next, ledger)
	for i := range next {
		if next[i].ID != id {
			continue
		}
		switch field {
		case FieldName:
			next[i].Name = coerceString(value)
		case FieldPrice:
			next[i].Price = coercePrice(value)
		case FieldTaxRate:
			next[i].TaxRate = coerceNumber(value)
		case FieldPayer:
			next[i].Payer = Payer(coerceString(value))
		}
		break
	}
	return next, nil
}

func coerceString(value any) string {
	s, _ := value.(string)
	return s
}

// coerceNumber converts a value to float64, tolerating the string form
// a text input produces. Anything non-numeric becomes 0.
func coerceNumber(value any) float64 {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

// coercePrice additionally clamps negative values to 0
func coercePrice(value any) float64 {
	price := coerceNumber(value)
	if price < 0 {
		return 0
	}
	return price
}
