package games

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func row(date, team, opp string, venue Venue) Record {
	return Record{Date: day(date), Team: team, Opponent: opp, Venue: venue, Season: "2023-2024"}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		in      string
		want    Result
		wantErr bool
	}{
		{"W", ResultWin, false},
		{"l", ResultLoss, false},
		{"OTL", ResultLoss, false},
		{"T", ResultLoss, false},
		{"", ResultNone, false},
		{"X", ResultNone, true},
	}
	for _, tt := range tests {
		got, err := ParseResult(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseResult(%q)", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ParseResult(%q)", tt.in)
	}
}

func TestParseOvertimeAndVenue(t *testing.T) {
	ot, err := ParseOvertime("2OT")
	require.NoError(t, err)
	assert.Equal(t, OvertimeOT, ot)

	ot, err = ParseOvertime("SO")
	require.NoError(t, err)
	assert.Equal(t, OvertimeShootout, ot)

	_, err = ParseOvertime("late")
	assert.Error(t, err)

	v, err := ParseVenue("@")
	require.NoError(t, err)
	assert.Equal(t, VenueAway, v)

	_, err = ParseVenue("neutral")
	assert.Error(t, err)
}

func TestParseDayDropsTime(t *testing.T) {
	d, err := ParseDay("2024-01-10 19:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), d)

	loc := time.FixedZone("ET", -5*3600)
	assert.Equal(t, d, Day(time.Date(2024, 1, 10, 23, 59, 0, 0, loc)))
}

func TestStatNames(t *testing.T) {
	for _, s := range DefaultRollingStats() {
		parsed, err := ParseStat(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStats([]string{"gf", "corsi"})
	assert.Error(t, err)
}

func TestLedgerOrdersEachTeamChronologically(t *testing.T) {
	l := NewLedger([]Record{
		row("2024-02-10", "A", "B", VenueAway),
		row("2024-01-10", "B", "A", VenueAway),
		row("2024-01-10", "A", "B", VenueHome),
		row("2024-02-10", "B", "A", VenueHome),
		row("2024-01-05", "A", "C", VenueHome),
	})

	assert.Equal(t, 5, l.Len())
	assert.Equal(t, []string{"A", "B"}, l.Teams())

	hist := l.History("A")
	require.Len(t, hist, 3)
	assert.Equal(t, day("2024-01-05"), hist[0].Date)
	assert.Equal(t, day("2024-01-10"), hist[1].Date)
	assert.Equal(t, day("2024-02-10"), hist[2].Date)
	for _, r := range hist {
		assert.Equal(t, "A", r.Team)
	}
	assert.Empty(t, l.History("Z"))
}

func TestLedgerSkipsDuplicateRows(t *testing.T) {
	first := row("2024-01-10", "A", "B", VenueHome)
	first.ShotsFor = 30
	repeat := first
	repeat.ShotsFor = 99

	l := NewLedger([]Record{first, row("2024-01-10", "B", "A", VenueAway), repeat})
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 1, l.Duplicates())

	hist := l.History("A")
	require.Len(t, hist, 1)
	assert.Equal(t, 30.0, hist[0].ShotsFor, "first occurrence wins, as in Reconcile")

	_, q := Reconcile([]Record{first, row("2024-01-10", "B", "A", VenueAway), repeat})
	assert.Equal(t, l.Duplicates(), q.Duplicates)
}

func TestLedgerCompleted(t *testing.T) {
	played := row("2024-01-10", "A", "B", VenueHome)
	played.Result = ResultWin
	unplayed := row("2024-01-11", "A", "C", VenueHome)
	future := row("2024-03-01", "A", "D", VenueHome)
	future.Result = ResultWin // result on/after today is ignored

	l := NewLedger([]Record{played, unplayed, future})
	got := l.Completed(day("2024-03-01"))
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Opponent)
}

func TestReconcilePairsMirroredRows(t *testing.T) {
	gs, q := Reconcile([]Record{
		row("2024-02-10", "A", "B", VenueAway),
		row("2024-01-10", "B", "A", VenueAway),
		row("2024-01-10", "A", "B", VenueHome),
		row("2024-02-10", "B", "A", VenueHome),
	})

	require.Len(t, gs, 2)
	assert.Zero(t, q.Faults())
	assert.NoError(t, q.Err())
	assert.Equal(t, 2, q.Paired)

	assert.Equal(t, "A", gs[0].Home.Team)
	assert.Equal(t, "B", gs[0].Away.Team)
	assert.Equal(t, day("2024-01-10"), gs[0].Date)
	assert.Equal(t, "B", gs[1].Home.Team)
	assert.Equal(t, "A", gs[1].Away.Team)
	assert.Equal(t, "2023-2024", gs[1].Season)
}

func TestReconcileReportsFaults(t *testing.T) {
	gs, q := Reconcile([]Record{
		// paired, plus a duplicate of the home row
		row("2024-01-10", "A", "B", VenueHome),
		row("2024-01-10", "A", "B", VenueHome),
		row("2024-01-10", "B", "A", VenueAway),
		// home row with no away counterpart
		row("2024-01-12", "C", "D", VenueHome),
		// away row with no home counterpart
		row("2024-01-13", "E", "F", VenueAway),
		// both teams claim home
		row("2024-01-14", "G", "H", VenueHome),
		row("2024-01-14", "H", "G", VenueHome),
	})

	require.Len(t, gs, 1)
	assert.Equal(t, 1, q.Duplicates)
	assert.Equal(t, 3, q.UnpairedHome)
	assert.Equal(t, 1, q.UnpairedAway)
	assert.Equal(t, 0, q.Conflicts)
	assert.Len(t, q.Unpaired, 4)
	assert.Equal(t, 5, q.Faults())

	err := q.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnpaired))
	var pe *PairingError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Quality.UnpairedHome)
}

func TestReconcileConflictingPairings(t *testing.T) {
	_, q := Reconcile([]Record{
		row("2024-01-14", "G", "H", VenueHome),
		row("2024-01-14", "H", "G", VenueAway),
		row("2024-01-14", "H", "G", VenueHome),
		row("2024-01-14", "G", "H", VenueAway),
	})
	assert.Equal(t, 1, q.Conflicts)
	assert.Equal(t, 0, q.Paired)
	assert.Len(t, q.Unpaired, 4)
}

func TestRecordHelpers(t *testing.T) {
	r := row("2024-01-10", "A", "B", VenueHome)
	r.ShotsFor = 30
	r.PPOAgainst = 4
	r.Overtime = OvertimeShootout

	assert.Equal(t, 30.0, r.Stat(ShotsFor))
	assert.Equal(t, 4.0, r.Stat(PPOAgainst))
	assert.True(t, r.WentToOvertime())
	assert.False(t, r.HasResult())
	assert.True(t, r.IsFuture(day("2024-01-10")))
	assert.False(t, r.IsFuture(day("2024-01-11")))
}
