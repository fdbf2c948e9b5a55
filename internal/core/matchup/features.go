package matchup

import (
	"fmt"
	"strings"

	"github.com/charleschow/nhl-predictor/internal/core/form"
	"github.com/charleschow/nhl-predictor/internal/core/games"
)

const (
	FeatureVenueCode     = "venue_code"
	FeatureOpponentCode  = "opponent_code"
	FeatureDayOfWeekCode = "day_of_week_code"
	FeatureOvertimeFlag  = "overtime_flag"
	FeatureGoalsForDiff  = "gf_diff"
	FeatureGoalsAgDiff   = "ga_diff"
	FeatureShotDiff      = "shot_diff"
	FeaturePIMDiff       = "pim_diff"
	FeaturePPODiff       = "ppo_diff"
	FeaturePPGDiff       = "ppg_diff"

	suffixHome = "_home"
	suffixAway = "_away"
)

// Named feature sets.
const (
	SetPregame  = "pregame"
	SetBoxscore = "boxscore"
)

// RollingFeatures lists "<stat>_rolling_home" for every stat, then the away
// side in the same order.
func RollingFeatures(stats []games.Stat) []string {
	out := make([]string, 0, 2*len(stats))
	for _, s := range stats {
		out = append(out, form.RollingName(s)+suffixHome)
	}
	for _, s := range stats {
		out = append(out, form.RollingName(s)+suffixAway)
	}
	return out
}

// PregameFeatures only uses what is known before puck drop.
func PregameFeatures(stats []games.Stat) []string {
	out := []string{FeatureVenueCode, FeatureOpponentCode, FeatureDayOfWeekCode}
	return append(out, RollingFeatures(stats)...)
}

// BoxscoreFeatures adds same-game differentials and the overtime flag. Those
// columns are zero for unplayed games, so models trained on them score the
// future on a different distribution than they were fitted on.
func BoxscoreFeatures(stats []games.Stat) []string {
	out := []string{
		FeatureVenueCode, FeatureOpponentCode, FeatureDayOfWeekCode,
		FeatureShotDiff, FeaturePIMDiff, FeaturePPODiff, FeaturePPGDiff, FeatureOvertimeFlag,
	}
	return append(out, RollingFeatures(stats)...)
}

// ResolveFeatures expands a named set, or validates an explicit list.
func ResolveFeatures(set string, explicit []string, stats []games.Stat) ([]string, error) {
	var names []string
	switch {
	case len(explicit) > 0:
		names = explicit
	case set == "" || set == SetPregame:
		names = PregameFeatures(stats)
	case set == SetBoxscore:
		names = BoxscoreFeatures(stats)
	default:
		return nil, fmt.Errorf("unknown feature set %q", set)
	}
	if err := ValidateFeatures(names, stats); err != nil {
		return nil, err
	}
	return names, nil
}

// ValidateFeatures checks that every name resolves and that rolling features
// refer to statistics the form stage computes.
func ValidateFeatures(names []string, stats []games.Stat) error {
	if len(names) == 0 {
		return fmt.Errorf("empty feature list")
	}
	computed := make(map[games.Stat]bool, len(stats))
	for _, s := range stats {
		computed[s] = true
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return fmt.Errorf("duplicate feature %q", n)
		}
		seen[n] = true
		if _, ok := scalarFeature(Matchup{}, n); ok {
			continue
		}
		s, _, err := parseRolling(n)
		if err != nil {
			return err
		}
		if !computed[s] {
			return fmt.Errorf("feature %q needs rolling stat %s, which is not computed", n, s)
		}
	}
	return nil
}

func scalarFeature(m Matchup, name string) (float64, bool) {
	switch name {
	case FeatureVenueCode:
		return float64(m.VenueCode), true
	case FeatureOpponentCode:
		return float64(m.OpponentCode), true
	case FeatureDayOfWeekCode:
		return float64(m.DayOfWeekCode), true
	case FeatureOvertimeFlag:
		return float64(m.OvertimeFlag), true
	case FeatureGoalsForDiff:
		return m.Diffs.GoalsFor, true
	case FeatureGoalsAgDiff:
		return m.Diffs.GoalsAgainst, true
	case FeatureShotDiff:
		return m.Diffs.Shots, true
	case FeaturePIMDiff:
		return m.Diffs.PIM, true
	case FeaturePPODiff:
		return m.Diffs.PPO, true
	case FeaturePPGDiff:
		return m.Diffs.PPG, true
	}
	return 0, false
}

func parseRolling(name string) (games.Stat, bool, error) {
	var home bool
	var base string
	switch {
	case strings.HasSuffix(name, suffixHome):
		home, base = true, strings.TrimSuffix(name, suffixHome)
	case strings.HasSuffix(name, suffixAway):
		base = strings.TrimSuffix(name, suffixAway)
	default:
		return 0, false, fmt.Errorf("unknown feature %q", name)
	}
	if !strings.HasSuffix(base, "_rolling") {
		return 0, false, fmt.Errorf("unknown feature %q", name)
	}
	s, err := games.ParseStat(strings.TrimSuffix(base, "_rolling"))
	if err != nil {
		return 0, false, fmt.Errorf("feature %q: %w", name, err)
	}
	return s, home, nil
}

// Feature returns a named feature value. Rolling values missing from a side
// read as 0.
func (m Matchup) Feature(name string) (float64, error) {
	if v, ok := scalarFeature(m, name); ok {
		return v, nil
	}
	s, home, err := parseRolling(name)
	if err != nil {
		return 0, err
	}
	if home {
		return m.Home.RollingValue(s), nil
	}
	return m.Away.RollingValue(s), nil
}

// Vector returns the features of m in the order of names.
func (m Matchup) Vector(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := m.Feature(n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Matrix stacks the feature vectors of ms.
func Matrix(ms []Matchup, names []string) ([][]float64, error) {
	X := make([][]float64, len(ms))
	for i, m := range ms {
		row, err := m.Vector(names)
		if err != nil {
			return nil, err
		}
		X[i] = row
	}
	return X, nil
}
