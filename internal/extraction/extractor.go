package extraction

import "fmt"

// ExtractedItem is one receipt line as reported by the model.
// TaxRate is 0 when the model omitted it; defaults are applied when the
// item is normalized into the ledger.
type ExtractedItem struct {
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	TaxRate float64 `json:"taxRate"`
}

// Result contains the line items extracted from a receipt image.
type Result struct {
	Items []ExtractedItem `json:"items"`
}

// Extractor defines the interface for receipt line-item extraction
type Extractor interface {
	// ExtractReceipt analyzes a receipt image and extracts its line items
	ExtractReceipt(imageData []byte, contentType string) (*Result, error)
	// Close closes the extractor and releases resources
	Close() error
}

// ExtractionError indicates the model call failed or returned an
// unusable payload. Callers treat it as non-fatal and fall back to an
// empty ledger.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
