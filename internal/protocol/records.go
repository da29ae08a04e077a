// Package protocol parses the pricing engine's line-oriented text output.
//
// A line looks like "<Label>: <value> [<trailing text>]". The price/Greeks
// section is two ordered blocks that reuse the same labels, so they are read
// as a sequence. Timing lines carry distinct labels and are found by
// substring.
package protocol

// Method identifies how a sensitivity was computed.
type Method string

const (
	AAD Method = "AAD"
	FD  Method = "FD"
)

// Quantity is one reported value of a GreeksRecord.
type Quantity string

const (
	Price Quantity = "Price"
	Delta Quantity = "Delta"
	Gamma Quantity = "Gamma"
	Vega  Quantity = "Vega"
	Theta Quantity = "Theta"
	Rho   Quantity = "Rho"
)

// Greeks lists the five sensitivities in protocol order.
var Greeks = []Quantity{Delta, Gamma, Vega, Theta, Rho}

// GreeksRecord is one method's sensitivities at one sample. Price is only
// reported by the AAD block.
type GreeksRecord struct {
	Method Method   `json:"method"`
	Price  *float64 `json:"price,omitempty"`
	Delta  float64  `json:"delta"`
	Gamma  float64  `json:"gamma"`
	Vega   float64  `json:"vega"`
	Theta  float64  `json:"theta"`
	Rho    float64  `json:"rho"`
}

// Get returns the value of q, or false when the record does not carry it.
func (g *GreeksRecord) Get(q Quantity) (float64, bool) {
	switch q {
	case Price:
		if g.Price == nil {
			return 0, false
		}
		return *g.Price, true
	case Delta:
		return g.Delta, true
	case Gamma:
		return g.Gamma, true
	case Vega:
		return g.Vega, true
	case Theta:
		return g.Theta, true
	case Rho:
		return g.Rho, true
	}
	return 0, false
}

func (g *GreeksRecord) set(q Quantity, v float64) {
	switch q {
	case Price:
		g.Price = &v
	case Delta:
		g.Delta = v
	case Gamma:
		g.Gamma = v
	case Vega:
		g.Vega = v
	case Theta:
		g.Theta = v
	case Rho:
		g.Rho = v
	}
}

// TimingRecord is the engine's self-reported cost of each method.
type TimingRecord struct {
	AADMicros float64 `json:"aad_time_us"`
	FDMicros  float64 `json:"fd_time_us"`
}
