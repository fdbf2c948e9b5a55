package games

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

// ErrUnpaired marks stats tables where some rows have no mirrored counterpart.
var ErrUnpaired = errors.New("unpaired game rows")

// Game is one contest reconciled from the home team's row and the away
// team's row of the same date.
type Game struct {
	Date   time.Time
	Season string
	Home   Record
	Away   Record
}

// Quality counts the rows that could not be reconciled into a Game.
type Quality struct {
	Paired       int
	UnpairedHome int
	UnpairedAway int
	Duplicates   int
	Conflicts    int
	Unpaired     []Record
}

func (q Quality) Faults() int {
	return q.UnpairedHome + q.UnpairedAway + q.Duplicates + q.Conflicts
}

// Err returns a *PairingError when any row failed to reconcile.
func (q Quality) Err() error {
	if q.Faults() == 0 {
		return nil
	}
	return &PairingError{Quality: q}
}

type PairingError struct {
	Quality Quality
}

func (e *PairingError) Error() string {
	return fmt.Sprintf("%v: home=%d away=%d duplicates=%d conflicts=%d",
		ErrUnpaired, e.Quality.UnpairedHome, e.Quality.UnpairedAway, e.Quality.Duplicates, e.Quality.Conflicts)
}

func (e *PairingError) Unwrap() error { return ErrUnpaired }

type pairKey struct {
	date time.Time
	a, b string
}

func keyOf(r Record) pairKey {
	a, b := r.Team, r.Opponent
	if b < a {
		a, b = b, a
	}
	return pairKey{date: r.Date, a: a, b: b}
}

type slotKey struct {
	team  string
	venue Venue
}

// Reconcile groups rows by (date, unordered team pair) and materializes one
// Game per group holding exactly one home row and one mirrored away row.
// Everything else is reported in Quality rather than guessed at: repeated
// (team, venue) rows are duplicates, and a group that could form two
// opposite pairings is a conflict.
func Reconcile(records []Record) ([]Game, Quality) {
	groups := make(map[pairKey][]Record)
	var order []pairKey
	for _, r := range records {
		k := keyOf(r)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	var (
		out []Game
		q   Quality
	)
	for _, k := range order {
		slots := make(map[slotKey]Record, 4)
		for _, r := range groups[k] {
			sk := slotKey{team: r.Team, venue: r.Venue}
			if _, dup := slots[sk]; dup {
				q.Duplicates++
				continue
			}
			slots[sk] = r
		}

		homeA, okHA := slots[slotKey{k.a, VenueHome}]
		awayB, okAB := slots[slotKey{k.b, VenueAway}]
		homeB, okHB := slots[slotKey{k.b, VenueHome}]
		awayA, okAA := slots[slotKey{k.a, VenueAway}]

		pairAB := okHA && okAB
		pairBA := okHB && okAA
		if pairAB && pairBA {
			q.Conflicts++
			for _, r := range slots {
				q.Unpaired = append(q.Unpaired, r)
			}
			continue
		}

		used := make(map[slotKey]bool, 2)
		switch {
		case pairAB:
			out = append(out, newGame(homeA, awayB))
			used[slotKey{k.a, VenueHome}] = true
			used[slotKey{k.b, VenueAway}] = true
		case pairBA:
			out = append(out, newGame(homeB, awayA))
			used[slotKey{k.b, VenueHome}] = true
			used[slotKey{k.a, VenueAway}] = true
		}
		for sk, r := range slots {
			if used[sk] {
				continue
			}
			if r.Venue == VenueHome {
				q.UnpairedHome++
			} else {
				q.UnpairedAway++
			}
			q.Unpaired = append(q.Unpaired, r)
		}
	}

	q.Paired = len(out)
	sortGames(out)
	sort.Slice(q.Unpaired, func(i, j int) bool {
		a, b := q.Unpaired[i], q.Unpaired[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		return a.Venue < b.Venue
	})

	for _, r := range q.Unpaired {
		telemetry.Debugf("unpaired row: %s %s %s vs %s", r.Date.Format(DateLayout), r.Venue, r.Team, r.Opponent)
	}
	return out, q
}

func newGame(home, away Record) Game {
	season := home.Season
	if season == "" {
		season = away.Season
	}
	return Game{Date: home.Date, Season: season, Home: home, Away: away}
}

func sortGames(gs []Game) {
	sort.Slice(gs, func(i, j int) bool {
		if !gs[i].Date.Equal(gs[j].Date) {
			return gs[i].Date.Before(gs[j].Date)
		}
		return gs[i].Home.Team < gs[j].Home.Team
	})
}
