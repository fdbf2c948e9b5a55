package games

import (
	"sort"
	"time"
)

// Ledger is an arena of records indexed by (team, chronological position).
// Each team's slice is ordered by date; the ledger never mixes teams, so a
// walk over one team's history cannot observe another team's rows.
type Ledger struct {
	records    []Record
	byTeam     map[string][]int
	teams      []string
	duplicates int
}

type rowKey struct {
	date           time.Time
	team, opponent string
	venue          Venue
}

// NewLedger indexes records by team. A repeated (date, team, opponent, venue)
// row is the same row Reconcile reports as a duplicate; only the first one is
// kept so it cannot fill two slots of a rolling window.
func NewLedger(records []Record) *Ledger {
	l := &Ledger{
		records: make([]Record, 0, len(records)),
		byTeam:  make(map[string][]int),
	}
	seen := make(map[rowKey]struct{}, len(records))
	for _, r := range records {
		k := rowKey{date: r.Date, team: r.Team, opponent: r.Opponent, venue: r.Venue}
		if _, dup := seen[k]; dup {
			l.duplicates++
			continue
		}
		seen[k] = struct{}{}
		l.byTeam[r.Team] = append(l.byTeam[r.Team], len(l.records))
		l.records = append(l.records, r)
	}
	for team, idx := range l.byTeam {
		sort.SliceStable(idx, func(a, b int) bool {
			ra, rb := l.records[idx[a]], l.records[idx[b]]
			if !ra.Date.Equal(rb.Date) {
				return ra.Date.Before(rb.Date)
			}
			return ra.Opponent < rb.Opponent
		})
		l.teams = append(l.teams, team)
	}
	sort.Strings(l.teams)
	return l
}

func (l *Ledger) Len() int { return len(l.records) }

// Duplicates is the number of repeated rows left out of the ledger.
func (l *Ledger) Duplicates() int { return l.duplicates }

// Teams returns the team names in sorted order.
func (l *Ledger) Teams() []string { return l.teams }

// History returns a team's records in chronological order.
func (l *Ledger) History(team string) []Record {
	idx := l.byTeam[team]
	out := make([]Record, len(idx))
	for i, j := range idx {
		out[i] = l.records[j]
	}
	return out
}

// Completed returns the records with a recorded result dated before today.
func (l *Ledger) Completed(today time.Time) []Record {
	var out []Record
	for _, r := range l.records {
		if r.HasResult() && r.Date.Before(today) {
			out = append(out, r)
		}
	}
	return out
}
