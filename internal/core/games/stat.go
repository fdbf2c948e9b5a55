package games

import "fmt"

// Stat names a per-game box score column.
type Stat int

const (
	GoalsFor Stat = iota
	GoalsAgainst
	ShotsFor
	ShotsAgainst
	PIMFor
	PIMAgainst
	PPGFor
	PPGAgainst
	PPOFor
	PPOAgainst
	numStats
)

var statNames = [numStats]string{
	"gf", "ga", "sog_for", "sog_against", "pim_for", "pim_against",
	"ppg_for", "ppg_against", "ppo_for", "ppo_against",
}

func (s Stat) String() string {
	if s < 0 || s >= numStats {
		return fmt.Sprintf("stat(%d)", int(s))
	}
	return statNames[s]
}

func ParseStat(name string) (Stat, error) {
	for i, n := range statNames {
		if n == name {
			return Stat(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stat %q", name)
}

func ParseStats(names []string) ([]Stat, error) {
	out := make([]Stat, 0, len(names))
	for _, n := range names {
		s, err := ParseStat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// DefaultRollingStats are the statistics whose trailing form feeds the model.
func DefaultRollingStats() []Stat {
	return []Stat{GoalsFor, GoalsAgainst, ShotsFor, ShotsAgainst, PIMFor, PIMAgainst}
}
