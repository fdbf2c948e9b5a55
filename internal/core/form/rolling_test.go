package form

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/nhl-predictor/internal/core/games"
)

func day(s string) time.Time {
	t, err := games.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func played(date, team string, shots, goals float64) games.Record {
	return games.Record{
		Date:     day(date),
		Team:     team,
		Opponent: "X",
		Venue:    games.VenueHome,
		Result:   games.ResultWin,
		ShotsFor: shots,
		GoalsFor: goals,
	}
}

func TestNewCalculatorRejectsBadInput(t *testing.T) {
	_, err := NewCalculator(0, games.DefaultRollingStats())
	assert.Error(t, err)
	_, err = NewCalculator(3, nil)
	assert.Error(t, err)
}

func TestTeamUsesOnlyPriorGames(t *testing.T) {
	c, err := NewCalculator(2, []games.Stat{games.ShotsFor, games.GoalsFor})
	require.NoError(t, err)

	history := []games.Record{
		played("2024-01-01", "A", 30, 1),
		played("2024-01-03", "A", 20, 3),
		played("2024-01-05", "A", 40, 5),
		played("2024-01-07", "A", 10, 2),
	}
	kept, dropped := c.Team(history, day("2024-06-01"))

	require.Len(t, dropped, 2)
	require.Len(t, kept, 2)
	assert.Equal(t, day("2024-01-05"), kept[0].Date)
	assert.InDelta(t, 25.0, kept[0].RollingValue(games.ShotsFor), 1e-9)
	assert.InDelta(t, 2.0, kept[0].RollingValue(games.GoalsFor), 1e-9)
	assert.InDelta(t, 30.0, kept[1].RollingValue(games.ShotsFor), 1e-9)
	assert.InDelta(t, 4.0, kept[1].RollingValue(games.GoalsFor), 1e-9)
	assert.False(t, kept[0].Imputed)
}

func TestChangingLaterGameNeverChangesEarlierForm(t *testing.T) {
	c, err := NewCalculator(1, []games.Stat{games.ShotsFor})
	require.NoError(t, err)
	today := day("2024-06-01")

	base := []games.Record{
		played("2024-01-01", "A", 30, 1),
		played("2024-01-03", "A", 20, 3),
		played("2024-01-05", "A", 40, 5),
	}
	before, _ := c.Team(base, today)

	mutated := append([]games.Record(nil), base...)
	mutated[2].ShotsFor = 99
	after, _ := c.Team(mutated, today)

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].RollingValue(games.ShotsFor), after[i].RollingValue(games.ShotsFor),
			"form of %s", before[i].Date.Format(games.DateLayout))
	}
}

func TestSameDayRowsDoNotSeeEachOther(t *testing.T) {
	c, err := NewCalculator(1, []games.Stat{games.ShotsFor})
	require.NoError(t, err)

	history := []games.Record{
		played("2024-01-01", "A", 30, 1),
		played("2024-01-02", "A", 20, 1),
		played("2024-01-02", "A", 50, 1),
	}
	kept, _ := c.Team(history, day("2024-06-01"))
	require.Len(t, kept, 2)
	for _, r := range kept {
		assert.Equal(t, 30.0, r.RollingValue(games.ShotsFor))
	}
}

func TestFutureGamesAreImputedNotDropped(t *testing.T) {
	c, err := NewCalculator(5, games.DefaultRollingStats())
	require.NoError(t, err)
	today := day("2024-10-01")

	future := games.Record{Date: day("2024-10-08"), Team: "New", Opponent: "B", Venue: games.VenueHome}
	kept, dropped := c.Team([]games.Record{future}, today)

	assert.Empty(t, dropped)
	require.Len(t, kept, 1)
	assert.True(t, kept[0].Imputed)
	for _, s := range games.DefaultRollingStats() {
		v, ok := kept[0].Rolling[s]
		assert.True(t, ok, "%s present", s)
		assert.Zero(t, v)
	}
}

func TestFutureGamesSkipUnplayedRowsInWindow(t *testing.T) {
	c, err := NewCalculator(1, []games.Stat{games.ShotsFor})
	require.NoError(t, err)
	today := day("2024-03-01")

	history := []games.Record{
		played("2024-02-01", "A", 33, 2),
		{Date: day("2024-03-02"), Team: "A", Opponent: "B", Venue: games.VenueAway},
		{Date: day("2024-03-04"), Team: "A", Opponent: "C", Venue: games.VenueHome},
	}
	kept, _ := c.Team(history, today)
	require.Len(t, kept, 2)
	for _, r := range kept {
		assert.Equal(t, 33.0, r.RollingValue(games.ShotsFor))
		assert.False(t, r.Imputed)
	}
}

func TestComputeIsolatesTeams(t *testing.T) {
	c, err := NewCalculator(1, []games.Stat{games.ShotsFor})
	require.NoError(t, err)

	l := games.NewLedger([]games.Record{
		played("2024-01-01", "A", 30, 1),
		played("2024-01-02", "B", 10, 1),
		played("2024-01-03", "A", 20, 1),
		played("2024-01-04", "B", 50, 1),
	})
	table := c.Compute(l, day("2024-06-01"))

	assert.Len(t, table.Records, 2)
	assert.Len(t, table.Dropped, 2)
	assert.Zero(t, table.Imputed)

	a, ok := table.Lookup("A", day("2024-01-03"))
	require.True(t, ok)
	assert.Equal(t, 30.0, a.RollingValue(games.ShotsFor))

	b, ok := table.Lookup("B", day("2024-01-04"))
	require.True(t, ok)
	assert.Equal(t, 10.0, b.RollingValue(games.ShotsFor))

	_, ok = table.Lookup("A", day("2024-01-01"))
	assert.False(t, ok)
	assert.Equal(t, "sog_for_rolling", RollingName(games.ShotsFor))
}

func TestComputeCountsRepeatedRowOnce(t *testing.T) {
	c, err := NewCalculator(2, []games.Stat{games.ShotsFor})
	require.NoError(t, err)

	l := games.NewLedger([]games.Record{
		played("2024-01-01", "A", 10, 1),
		played("2024-01-01", "A", 99, 1),
		played("2024-01-02", "A", 30, 1),
		played("2024-01-03", "A", 50, 1),
	})
	table := c.Compute(l, day("2024-06-01"))

	_, ok := table.Lookup("A", day("2024-01-02"))
	assert.False(t, ok, "only one distinct prior game")

	r, ok := table.Lookup("A", day("2024-01-03"))
	require.True(t, ok)
	assert.Equal(t, 20.0, r.RollingValue(games.ShotsFor))
}
