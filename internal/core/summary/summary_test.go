package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/nhl-predictor/internal/core/games"
)

func rec(day int, team string, res games.Result, gf, shots, pim float64) games.Record {
	return games.Record{
		Date:     time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Team:     team,
		Result:   res,
		GoalsFor: gf,
		ShotsFor: shots,
		PIMFor:   pim,
	}
}

func TestSummarize(t *testing.T) {
	today := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	l := games.NewLedger([]games.Record{
		rec(1, "A", games.ResultWin, 3, 30, 4),
		rec(3, "A", games.ResultLoss, 1, 20, 8),
		rec(1, "B", games.ResultWin, 2, 25, 2),
		rec(25, "B", games.ResultNone, 0, 0, 0),
		rec(25, "C", games.ResultNone, 0, 0, 0),
		rec(5, "D", games.ResultLoss, 0, 0, 6),
	})

	got := Summarize(l, today)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"B", "A", "C", "D"}, []string{got[0].Team, got[1].Team, got[2].Team, got[3].Team})

	a := got[1]
	assert.Equal(t, 2, a.Games)
	assert.Equal(t, "1:1", a.Ratio())
	assert.Equal(t, 0.5, a.WinRate)
	assert.Equal(t, 25.0, a.AvgShots)
	assert.Equal(t, 4.0/50.0, a.ShootingAccuracy)
	assert.Equal(t, 6.0, a.AvgPIM)

	c := got[2]
	assert.Zero(t, c.Games)
	assert.Zero(t, c.WinRate)
	assert.Equal(t, "0:0", c.Ratio())

	d := got[3]
	assert.Equal(t, 1, d.Games)
	assert.Zero(t, d.ShootingAccuracy, "no shots means zero accuracy, not NaN")
}
