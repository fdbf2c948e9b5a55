package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/form"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/matchup"
	"github.com/charleschow/nhl-predictor/internal/core/model"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
)

var season0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func pair(date time.Time, home, away string, homeWon, played bool, hs, as float64) []games.Record {
	h := games.Record{Date: date, Season: "2023-24", Team: home, Opponent: away, Venue: games.VenueHome, ShotsFor: hs, ShotsAgainst: as}
	a := games.Record{Date: date, Season: "2023-24", Team: away, Opponent: home, Venue: games.VenueAway, ShotsFor: as, ShotsAgainst: hs}
	if played {
		h.Result, a.Result = games.ResultLoss, games.ResultWin
		h.GoalsFor, a.GoalsFor = 1, 3
		if homeWon {
			h.Result, a.Result = games.ResultWin, games.ResultLoss
			h.GoalsFor, a.GoalsFor = 4, 2
		}
		h.GoalsAgainst, a.GoalsAgainst = a.GoalsFor, h.GoalsFor
	}
	return []games.Record{h, a}
}

// season builds a round robin of four teams over days [0, days) where games
// before today carry results.
func season(days int, today time.Time) []games.Record {
	teams := []string{"A", "B", "C", "D"}
	var recs []games.Record
	for d := 0; d < days; d++ {
		date := season0.AddDate(0, 0, d)
		played := date.Before(today)
		for g := 0; g < 2; g++ {
			home := teams[(d+2*g)%4]
			away := teams[(d+2*g+1)%4]
			hs := float64(25 + (d*3+g)%11)
			as := float64(25 + (d*5+g)%7)
			recs = append(recs, pair(date, home, away, hs > as || (d+g)%5 == 0, played, hs, as)...)
		}
	}
	return recs
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.Classifier.Trees = 20
	return opts
}

func TestRunEndToEnd(t *testing.T) {
	today := season0.AddDate(0, 0, 50)
	res, err := Run(season(60, today), today, fastOptions())
	require.NoError(t, err)

	assert.Zero(t, res.Quality.Faults())
	require.Len(t, res.Teams, 4)
	require.False(t, res.Predictions.NoFutureGames)
	assert.Len(t, res.Predictions.Predictions, 20)
	for _, p := range res.Predictions.Predictions {
		assert.False(t, p.Date.Before(today))
		assert.Equal(t, 1.0, p.HomeWinProbability+p.AwayWinProbability)
		assert.Equal(t, p.HomeWinProbability > 0.6, p.Prediction == 1)
	}
	require.NoError(t, res.EvaluationErr)
	require.NotNil(t, res.Evaluation)
	assert.Equal(t, res.Predictions.TrainingRows, res.Evaluation.TrainRows+res.Evaluation.TestRows)
}

func TestRunIsIdempotent(t *testing.T) {
	today := season0.AddDate(0, 0, 50)
	recs := season(60, today)
	opts := fastOptions()
	opts.Classifier.Subsample = 0.8
	opts.Classifier.ColSample = 0.7

	a, err := Run(recs, today, opts)
	require.NoError(t, err)
	b, err := Run(recs, today, opts)
	require.NoError(t, err)
	assert.Equal(t, a.Predictions.Predictions, b.Predictions.Predictions)
}

func TestRunScoresFutureGameWithoutHistory(t *testing.T) {
	today := season0.AddDate(0, 0, 50)
	recs := season(50, today)
	recs = append(recs, pair(today.AddDate(0, 0, 2), "E", "A", false, false, 0, 0)...)

	res, err := Run(recs, today, fastOptions())
	require.NoError(t, err)
	require.Len(t, res.Predictions.Predictions, 1)
	p := res.Predictions.Predictions[0]
	assert.Equal(t, "E", p.HomeTeam)
	assert.True(t, p.Home.Imputed)
	for _, s := range games.DefaultRollingStats() {
		assert.Zero(t, p.Home.RollingValue(s))
	}
	assert.Equal(t, 4, p.VenueCode, "the run encoder includes future hosts")
}

func TestRunPastMeetingGoesToBacktest(t *testing.T) {
	recs := append(
		pair(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "A", "B", true, true, 30, 25),
		pair(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), "B", "A", false, true, 28, 31)...,
	)
	opts := fastOptions()
	opts.Window = 1
	res, err := Run(recs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), opts)
	require.NoError(t, err)

	require.Len(t, res.Matchups, 1)
	m := res.Matchups[0]
	assert.Equal(t, 25.0, m.Home.RollingValue(games.ShotsFor))
	assert.Equal(t, 30.0, m.Away.RollingValue(games.ShotsFor))
	assert.True(t, res.Predictions.NoFutureGames)
	assert.ErrorIs(t, res.EvaluationErr, evaluate.ErrInsufficientHistory)
}

func TestRunStrictPairing(t *testing.T) {
	today := season0.AddDate(0, 0, 50)
	recs := season(60, today)
	recs = recs[:len(recs)-1]

	opts := fastOptions()
	_, err := Run(recs, today, opts)
	require.NoError(t, err)

	opts.StrictPairing = true
	_, err = Run(recs, today, opts)
	assert.ErrorIs(t, err, games.ErrUnpaired)
}

func TestRunSingleClassFails(t *testing.T) {
	today := season0.AddDate(0, 0, 20)
	var recs []games.Record
	teams := []string{"A", "B", "C", "D"}
	for d := 0; d < 30; d++ {
		date := season0.AddDate(0, 0, d)
		recs = append(recs, pair(date, teams[d%4], teams[(d+1)%4], true, date.Before(today), 30, 20)...)
	}
	_, err := Run(recs, today, fastOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, predict.ErrFit)
	assert.ErrorIs(t, err, model.ErrSingleClass)
}

func TestRunRejectsBadOptions(t *testing.T) {
	_, err := Run(nil, season0, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoRecords)

	opts := DefaultOptions()
	opts.Features = []string{"corsi_rolling_home"}
	_, err = Run(season(5, season0), season0, opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Window = 0
	_, err = Run(season(5, season0), season0, opts)
	assert.Error(t, err)
}

func TestDefaultOptionsMatchDefaults(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, form.DefaultWindow, opts.Window)
	assert.Equal(t, matchup.PregameFeatures(games.DefaultRollingStats()), opts.Features)
	assert.Equal(t, 0.6, opts.Threshold)
}
