package allocation

import "math"

// Rejection classifies why a SKU received no quantity.
type Rejection string

const (
	// Accepted marks a record that received a quantity.
	Accepted Rejection = ""
	// RejectGirth marks a SKU whose own girth exceeds the channel limit.
	RejectGirth Rejection = "girth"
	// RejectBoxFit marks a SKU with a dimension larger than the box.
	RejectBoxFit Rejection = "box_fit"
	// RejectCapacity marks a SKU heavier or bulkier than the box can take.
	RejectCapacity Rejection = "capacity"
	// RejectMinimum marks a SKU that cannot reach the band minimum within the weight cap.
	RejectMinimum Rejection = "minimum_quantity"
)

// Notes attached to rejected records.
const (
	NoteGirth    = "girth exceeds channel limit"
	NoteBoxFit   = "SKU dimensions exceed box"
	NoteCapacity = "weight or volume exceeds box capacity"
)

// Band is the policy range of units allowed per accepted SKU.
type Band struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// DefaultBand returns the standard pack policy of 5 to 30 units per SKU.
func DefaultBand() Band {
	return Band{Min: 5, Max: 30}
}

// Validate reports ErrInvalidBand when the band cannot be applied.
func (b Band) Validate() error {
	if b.Min < 0 || b.Max < b.Min {
		return ErrInvalidBand
	}
	return nil
}

// capCount converts a floored unit count to int, saturating at Max so counts
// beyond the int range cannot wrap.
func (b Band) capCount(f float64) int {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= float64(b.Max) {
		return b.Max
	}
	return int(f)
}

func (b Band) clamp(n int) int {
	if n < b.Min {
		return b.Min
	}
	if n > b.Max {
		return b.Max
	}
	return n
}

// Record is the allocation outcome for one input SKU.
type Record struct {
	SKUID      string    `json:"skuId"`
	Quantity   int       `json:"quantity"`
	UnitWeight float64   `json:"unitWeight"`
	Note       string    `json:"note"`
	Rejection  Rejection `json:"rejection,omitempty"`
}

// Accepted reports whether the SKU passed every check.
func (r Record) Accepted() bool {
	return r.Rejection == Accepted
}

// Result groups the per-SKU records with the running totals.
// TotalWeight excludes the carton tare.
type Result struct {
	Records       []Record `json:"records"`
	TotalQuantity int      `json:"totalQuantity"`
	TotalWeight   float64  `json:"totalWeight"`
}
