package csvstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/matchup"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/core/teams"
)

const statsCSV = `,gp,date,time,venue,opponent,gf,ga,result,sog_for,sog_against,pim_for,pim_against,ot,ppg_for,ppg_against,ppo_for,ppo_against,season,team
0,1,2024-10-08,7:00 PM,,Chicago Blackhawks,2,1,W,30,25,4,6,,1,0,3,2,2024-2025,Utah Hockey Club
1,2,2024-10-10 00:00:00,7:00 PM,Away,Montréal Canadiens,3,4,L,28,31,8,2,OT,0,1,2,4,2024-2025,Utah Hockey Club
2,3,2024-10-12,7:00 PM,Away,Boston Bruins,,,,,,,,,,,,,2024-2025,Utah Hockey Club
`

func TestReadRecords(t *testing.T) {
	recs, err := ReadRecords(strings.NewReader(statsCSV), teams.NewResolver(teams.DefaultAliases))
	require.NoError(t, err)
	require.Len(t, recs, 3)

	first := recs[0]
	assert.Equal(t, time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "Utah Mammoth", first.Team)
	assert.Equal(t, games.VenueHome, first.Venue)
	assert.Equal(t, games.ResultWin, first.Result)
	assert.Equal(t, 30.0, first.ShotsFor)
	assert.Equal(t, 3.0, first.PPOFor)
	assert.Equal(t, "2024-2025", first.Season)

	second := recs[1]
	assert.Equal(t, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC), second.Date)
	assert.Equal(t, games.VenueAway, second.Venue)
	assert.Equal(t, games.OvertimeOT, second.Overtime)
	assert.Equal(t, "Montréal Canadiens", second.Opponent)

	future := recs[2]
	assert.False(t, future.HasResult())
	assert.Zero(t, future.ShotsFor)
}

func TestReadRecordsMissingColumn(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("date,team,venue\n2024-01-01,A,Home\n"), nil)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadRecordsCollectsRowErrors(t *testing.T) {
	in := "date,team,opponent,venue,result,sog_for\n" +
		"2024-01-01,A,B,Home,W,30\n" +
		"not-a-date,A,B,Home,W,30\n" +
		"2024-01-03,A,B,Sideways,W,30\n" +
		"2024-01-04,A,B,Home,W,lots\n"
	_, err := ReadRecords(strings.NewReader(in), nil)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "line 3")
	assert.Contains(t, msg, "line 4")
	assert.Contains(t, msg, "line 5")
}

func TestPredictionsRoundTrip(t *testing.T) {
	m := matchup.Matchup{
		Date:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Season:   "2024-2025",
		HomeTeam: "Boston Bruins",
		AwayTeam: "Toronto Maple Leafs, Ltd",
	}
	in := []predict.Record{predict.Decide(m, 0.6123456789012345, 0.6), predict.Decide(m, 0.1, 0.6)}

	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, in))
	out, err := ReadPredictions(&buf)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		assert.Equal(t, in[i].Row(), out[i])
	}
}

func TestSaveOutputsSkipsEmptyHighConfidence(t *testing.T) {
	dir := t.TempDir()
	pred := filepath.Join(dir, "out", "predictions.csv")
	high := filepath.Join(dir, "out", "high.csv")

	m := matchup.Matchup{Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), HomeTeam: "A", AwayTeam: "B"}
	res := &predict.Result{Predictions: []predict.Record{predict.Decide(m, 0.4, 0.6)}}
	require.NoError(t, SaveOutputs(pred, high, res))

	_, err := os.Stat(pred)
	assert.NoError(t, err)
	_, err = os.Stat(high)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveOutputsClearsStaleHighConfidence(t *testing.T) {
	dir := t.TempDir()
	pred := filepath.Join(dir, "predictions.csv")
	high := filepath.Join(dir, "high.csv")

	first := predict.Decide(matchup.Matchup{Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), HomeTeam: "A", AwayTeam: "B"}, 0.8, 0.6)
	require.NoError(t, SaveOutputs(pred, high, &predict.Result{
		Predictions:    []predict.Record{first},
		HighConfidence: []predict.Record{first},
	}))
	_, err := os.Stat(high)
	require.NoError(t, err)

	second := predict.Decide(matchup.Matchup{Date: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), HomeTeam: "C", AwayTeam: "D"}, 0.4, 0.6)
	require.NoError(t, SaveOutputs(pred, high, &predict.Result{Predictions: []predict.Record{second}}))

	_, err = os.Stat(high)
	assert.True(t, os.IsNotExist(err), "high-confidence file from the previous run must not survive")

	f, err := os.Open(pred)
	require.NoError(t, err)
	defer f.Close()
	rows, err := ReadPredictions(f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "C", rows[0].HomeTeam)

	// No-future-games run: both tables empty, still no stale file.
	require.NoError(t, SaveOutputs(pred, high, &predict.Result{NoFutureGames: true}))
	_, err = os.Stat(high)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.csv")
	require.NoError(t, os.WriteFile(path, []byte(statsCSV), 0o644))

	recs, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, "Utah Hockey Club", recs[0].Team, "no resolver keeps names as written")
}
