// Package form computes each team's trailing "form": the mean of selected box
// score statistics over its last K completed games before the current one.
package form

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/charleschow/nhl-predictor/internal/core/games"
)

const DefaultWindow = 5

// Record is a games.Record extended with its rolling form. Imputed is set on
// future games that lacked a full window and were filled with zeros.
type Record struct {
	games.Record
	Rolling map[games.Stat]float64
	Imputed bool
}

// RollingValue returns the form value for s, or 0 when it was not computed.
func (r Record) RollingValue(s games.Stat) float64 { return r.Rolling[s] }

// RollingName is the column name of a rolling statistic, e.g. "gf_rolling".
func RollingName(s games.Stat) string { return s.String() + "_rolling" }

type Calculator struct {
	Window int
	Stats  []games.Stat
}

func NewCalculator(window int, stats []games.Stat) (*Calculator, error) {
	if window < 1 {
		return nil, fmt.Errorf("rolling window must be at least 1, got %d", window)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("no rolling statistics configured")
	}
	return &Calculator{Window: window, Stats: stats}, nil
}

type teamDay struct {
	team string
	date time.Time
}

// Table is the output of one Compute call.
type Table struct {
	Records []Record
	Dropped []games.Record
	Imputed int
	index   map[teamDay]int
}

// Lookup finds a team's form row for a game date.
func (t *Table) Lookup(team string, date time.Time) (Record, bool) {
	i, ok := t.index[teamDay{team, date}]
	if !ok {
		return Record{}, false
	}
	return t.Records[i], true
}

// Compute walks every team in the ledger independently.
func (c *Calculator) Compute(l *games.Ledger, today time.Time) *Table {
	t := &Table{index: make(map[teamDay]int)}
	for _, team := range l.Teams() {
		kept, dropped := c.Team(l.History(team), today)
		for _, r := range kept {
			t.index[teamDay{r.Team, r.Date}] = len(t.Records)
			t.Records = append(t.Records, r)
			if r.Imputed {
				t.Imputed++
			}
		}
		t.Dropped = append(t.Dropped, dropped...)
	}
	return t
}

// Team computes form for one team's chronologically ordered history. The
// window for a game only sees completed games dated strictly earlier, so rows
// sharing a date never see each other and later rows never leak backwards.
// A game before today without a full window is dropped; a game on or after
// today is kept with zeros.
func (c *Calculator) Team(history []games.Record, today time.Time) (kept []Record, dropped []games.Record) {
	var done []games.Record
	for i := 0; i < len(history); {
		j := i
		for j < len(history) && history[j].Date.Equal(history[i].Date) {
			j++
		}
		for _, rec := range history[i:j] {
			out := Record{Record: rec, Rolling: make(map[games.Stat]float64, len(c.Stats))}
			switch {
			case len(done) >= c.Window:
				window := done[len(done)-c.Window:]
				vals := make([]float64, len(window))
				for _, s := range c.Stats {
					for k, w := range window {
						vals[k] = w.Stat(s)
					}
					out.Rolling[s] = stat.Mean(vals, nil)
				}
			case rec.IsFuture(today):
				for _, s := range c.Stats {
					out.Rolling[s] = 0
				}
				out.Imputed = true
			default:
				dropped = append(dropped, rec)
				continue
			}
			kept = append(kept, out)
		}
		for _, rec := range history[i:j] {
			if rec.HasResult() {
				done = append(done, rec)
			}
		}
		i = j
	}
	return kept, dropped
}
