package matchup

import (
	"sort"

	"github.com/charleschow/nhl-predictor/internal/core/games"
)

// Encoder holds the categorical codes for one pipeline run. Training and
// inference must share a single Encoder or the integer columns stop meaning
// the same thing.
type Encoder struct {
	venues    map[string]int
	opponents map[string]int
}

// NewEncoder assigns codes to the distinct venue labels (home teams) and
// opponent labels (away teams) in sorted order.
func NewEncoder(venues, opponents []string) *Encoder {
	return &Encoder{
		venues:    codes(venues),
		opponents: codes(opponents),
	}
}

// EncoderFromGames builds an Encoder over every reconciled game.
func EncoderFromGames(gs []games.Game) *Encoder {
	venues := make([]string, 0, len(gs))
	opponents := make([]string, 0, len(gs))
	for _, g := range gs {
		venues = append(venues, g.Home.Team)
		opponents = append(opponents, g.Away.Team)
	}
	return NewEncoder(venues, opponents)
}

func codes(labels []string) map[string]int {
	uniq := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		uniq[l] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for l := range uniq {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)
	out := make(map[string]int, len(sorted))
	for i, l := range sorted {
		out[l] = i
	}
	return out
}

// VenueCode returns -1 for a label the encoder has not seen.
func (e *Encoder) VenueCode(label string) int {
	if c, ok := e.venues[label]; ok {
		return c
	}
	return -1
}

func (e *Encoder) OpponentCode(label string) int {
	if c, ok := e.opponents[label]; ok {
		return c
	}
	return -1
}

func (e *Encoder) Venues() int    { return len(e.venues) }
func (e *Encoder) Opponents() int { return len(e.opponents) }
