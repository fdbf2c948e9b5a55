package matchup

import (
	"time"

	"github.com/charleschow/nhl-predictor/internal/core/form"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

// Diffs are home-minus-away differences of same-game box score stats.
type Diffs struct {
	GoalsFor     float64
	GoalsAgainst float64
	Shots        float64
	PIM          float64
	PPO          float64
	PPG          float64
}

func Differentials(home, away games.Record) Diffs {
	return Diffs{
		GoalsFor:     home.GoalsFor - away.GoalsFor,
		GoalsAgainst: home.GoalsAgainst - away.GoalsAgainst,
		Shots:        home.ShotsFor - away.ShotsFor,
		PIM:          home.PIMFor - away.PIMFor,
		PPO:          home.PPOFor - away.PPOFor,
		PPG:          home.PPGFor - away.PPGFor,
	}
}

// Matchup is one game seen from the home team's side.
type Matchup struct {
	Date     time.Time
	Season   string
	HomeTeam string
	AwayTeam string
	Home     form.Record
	Away     form.Record

	// Target is 1 when the home team won. It is meaningful only when
	// HasTarget is set: the game is before today and has a recorded result.
	Target    int
	HasTarget bool

	Diffs
	VenueCode     int
	OpponentCode  int
	DayOfWeekCode int
	OvertimeFlag  int
}

// DayOfWeek maps Monday to 0 through Sunday to 6.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Build derives every feature of a matchup from its two sides.
func Build(home, away form.Record, enc *Encoder, today time.Time) Matchup {
	m := Matchup{
		Date:          home.Date,
		Season:        home.Season,
		HomeTeam:      home.Team,
		AwayTeam:      away.Team,
		Home:          home,
		Away:          away,
		Diffs:         Differentials(home.Record, away.Record),
		VenueCode:     enc.VenueCode(home.Team),
		OpponentCode:  enc.OpponentCode(away.Team),
		DayOfWeekCode: DayOfWeek(home.Date),
	}
	if m.Season == "" {
		m.Season = away.Season
	}
	if home.WentToOvertime() {
		m.OvertimeFlag = 1
	}
	if !home.IsFuture(today) && home.HasResult() {
		m.HasTarget = true
		if home.Won() {
			m.Target = 1
		}
	}
	return m
}

// Swapped rebuilds the matchup with the sides exchanged.
func (m Matchup) Swapped(enc *Encoder, today time.Time) Matchup {
	home := m.Away
	away := m.Home
	home.Venue, away.Venue = games.VenueHome, games.VenueAway
	return Build(home, away, enc, today)
}

// IsFuture reports whether the game is on or after today.
func (m Matchup) IsFuture(today time.Time) bool { return !m.Date.Before(today) }

// Stats summarizes one assembly pass.
type Stats struct {
	Games          int
	Built          int
	DroppedHistory int
	MissingResult  int
}

// Assemble joins each reconciled game with both sides' form rows. A game is
// skipped when either side was dropped by the form stage for lack of history.
// Past games without a recorded result are kept but carry no target.
func Assemble(gs []games.Game, table *form.Table, enc *Encoder, today time.Time) ([]Matchup, Stats) {
	st := Stats{Games: len(gs)}
	out := make([]Matchup, 0, len(gs))
	for _, g := range gs {
		home, okH := table.Lookup(g.Home.Team, g.Date)
		away, okA := table.Lookup(g.Away.Team, g.Date)
		if !okH || !okA {
			st.DroppedHistory++
			continue
		}
		m := Build(home, away, enc, today)
		if !m.IsFuture(today) && !m.HasTarget {
			st.MissingResult++
			telemetry.Debugf("matchup %s %s vs %s: past game without result",
				m.Date.Format(games.DateLayout), m.HomeTeam, m.AwayTeam)
		}
		out = append(out, m)
	}
	st.Built = len(out)
	return out, st
}
