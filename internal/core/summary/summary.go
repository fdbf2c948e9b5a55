// Package summary reports descriptive per-team rates over completed games.
package summary

import (
	"fmt"
	"sort"
	"time"

	"github.com/charleschow/nhl-predictor/internal/core/games"
)

type TeamSummary struct {
	Team             string
	Games            int
	Wins             int
	Losses           int
	WinRate          float64
	AvgShots         float64
	ShootingAccuracy float64
	AvgPIM           float64
}

// Ratio renders the record as "W:L".
func (s TeamSummary) Ratio() string { return fmt.Sprintf("%d:%d", s.Wins, s.Losses) }

type accum struct {
	games, wins       int
	shots, goals, pim float64
}

// Summarize aggregates the rows of l that completed before today. Teams
// without a completed game still appear with zero rates. Output is sorted by
// win rate descending, then team name.
func Summarize(l *games.Ledger, today time.Time) []TeamSummary {
	acc := make(map[string]*accum, len(l.Teams()))
	for _, team := range l.Teams() {
		acc[team] = &accum{}
	}
	for _, r := range l.Completed(today) {
		a := acc[r.Team]
		a.games++
		if r.Won() {
			a.wins++
		}
		a.shots += r.ShotsFor
		a.goals += r.GoalsFor
		a.pim += r.PIMFor
	}

	out := make([]TeamSummary, 0, len(acc))
	for team, a := range acc {
		s := TeamSummary{Team: team, Games: a.games, Wins: a.wins, Losses: a.games - a.wins}
		if a.games > 0 {
			n := float64(a.games)
			s.WinRate = float64(a.wins) / n
			s.AvgShots = a.shots / n
			s.AvgPIM = a.pim / n
		}
		if a.shots > 0 {
			s.ShootingAccuracy = a.goals / a.shots
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WinRate != out[j].WinRate {
			return out[i].WinRate > out[j].WinRate
		}
		return out[i].Team < out[j].Team
	})
	return out
}
