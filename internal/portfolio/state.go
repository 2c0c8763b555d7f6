// Package portfolio holds the virtual portfolio a simulation run mutates.
package portfolio

// Position is a long-only holding in one symbol. Size zero means flat.
type Position struct {
	Symbol            string
	Size              float64
	AverageEntryPrice float64
}

// IsOpen returns true if the position holds any units.
func (p *Position) IsOpen() bool {
	return p != nil && p.Size > 0
}

// State is the live portfolio of one run. It is owned by a single simulator
// and is never shared across goroutines.
type State struct {
	Cash                 float64
	Positions            map[string]*Position // symbol -> position
	DailyHighWaterMark   float64
	AllTimeHighWaterMark float64
}

// New creates a State holding only cash.
func New(initialCapital float64) *State {
	return &State{
		Cash:      initialCapital,
		Positions: make(map[string]*Position),
	}
}

// Position returns the position for a symbol, or a flat one if none exists.
// The returned value is a copy.
func (s *State) Position(symbol string) Position {
	if pos, ok := s.Positions[symbol]; ok {
		return *pos
	}
	return Position{Symbol: symbol}
}

// HoldingsValue marks every open position at the given prices. Symbols
// missing from marks are valued at their average entry price.
func (s *State) HoldingsValue(marks map[string]float64) float64 {
	var total float64
	for symbol, pos := range s.Positions {
		price, ok := marks[symbol]
		if !ok {
			price = pos.AverageEntryPrice
		}
		total += pos.Size * price
	}
	return total
}

// Equity returns cash plus holdings marked at the given prices.
func (s *State) Equity(marks map[string]float64) float64 {
	return s.Cash + s.HoldingsValue(marks)
}
