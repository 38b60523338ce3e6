package bill

// Tax rates for Japanese consumption tax
const (
	ReducedTaxRate  = 0.08 // groceries, takeout
	StandardTaxRate = 0.10
)

// Payer identifies who is financially responsible for an item
type Payer string

const (
	PayerA      Payer = "payer_a"
	PayerB      Payer = "payer_b"
	PayerShared Payer = "shared" // split 50/50
)

// Valid reports whether p is one of the three known payers
func (p Payer) Valid() bool {
	return p == PayerA || p == PayerB || p == PayerShared
}

// Item represents one bill line
type Item struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"` // Pre-tax unit price in JPY
	TaxRate float64 `json:"tax_rate"`
	Payer   Payer   `json:"payer"`
}

// Ledger is the ordered collection of bill items for a session.
// Order is meaningful only for display; IDs are unique within a session.
type Ledger []Item

// validTaxRate reports whether rate is one of the enumerated rates
func validTaxRate(rate float64) bool {
	return rate == ReducedTaxRate || rate == StandardTaxRate
}
