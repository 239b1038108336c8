package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
)

// Undefined is how a rate with a zero denominator is rendered
const Undefined = "N/A"

// Rate is a percentage rounded to two decimals. A zero denominator produces
// an undefined rate rather than 0 or a division error.
type Rate struct {
	Value   float64
	Defined bool
}

// NewRate returns num/den*100, undefined when den is 0
func NewRate(num, den int) Rate {
	if den == 0 {
		return Rate{}
	}

	return Rate{Value: percent(num, den), Defined: true}
}

// String renders the rate as "12.50%" or "N/A"
func (r Rate) String() string {
	if !r.Defined {
		return Undefined
	}

	return fmt.Sprintf("%.2f%%", r.Value)
}

// MarshalJSON encodes undefined rates as null
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}

	return json.Marshal(r.Value)
}

// MarshalYAML encodes undefined rates as null
func (r Rate) MarshalYAML() (interface{}, error) {
	if !r.Defined {
		return nil, nil
	}

	return r.Value, nil
}

func percent(num, den int) float64 {
	return round2(float64(num) / float64(den) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
