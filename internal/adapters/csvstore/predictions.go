package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
)

var predictionHeader = []string{
	"date", "season", "home_team", "away_team",
	"home_win_probability", "away_win_probability", "prediction", "predicted_winner",
}

// WritePredictions encodes probabilities with the shortest representation
// that parses back to the same float64.
func WritePredictions(w io.Writer, rows []predict.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionHeader); err != nil {
		return err
	}
	for _, r := range rows {
		row := r.Row()
		if err := cw.Write([]string{
			row.Date.Format(games.DateLayout),
			row.Season,
			row.HomeTeam,
			row.AwayTeam,
			strconv.FormatFloat(row.HomeWinProbability, 'g', -1, 64),
			strconv.FormatFloat(row.AwayWinProbability, 'g', -1, 64),
			strconv.Itoa(row.Prediction),
			row.PredictedWinner,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadPredictions(r io.Reader) ([]predict.Row, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[h] = i
	}
	for _, c := range predictionHeader {
		if _, ok := colIdx[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var out []predict.Row
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		var p predict.Row
		if p.Date, err = games.ParseDay(getCol(row, colIdx, "date")); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		p.Season = getCol(row, colIdx, "season")
		p.HomeTeam = getCol(row, colIdx, "home_team")
		p.AwayTeam = getCol(row, colIdx, "away_team")
		p.PredictedWinner = getCol(row, colIdx, "predicted_winner")
		if p.HomeWinProbability, err = getColFloat(row, colIdx, "home_win_probability"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if p.AwayWinProbability, err = getColFloat(row, colIdx, "away_win_probability"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if p.Prediction, err = strconv.Atoi(getCol(row, colIdx, "prediction")); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// SavePredictions writes rows to path, replacing the file atomically.
func SavePredictions(path string, rows []predict.Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WritePredictions(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// SaveOutputs writes the predictions table and, when it is non-empty, the
// high-confidence table. An empty high-confidence table removes any file left
// by an earlier run so it never lists games missing from the predictions.
func SaveOutputs(predictionsPath, highConfidencePath string, res *predict.Result) error {
	if err := SavePredictions(predictionsPath, res.Predictions); err != nil {
		return err
	}
	if highConfidencePath == "" {
		return nil
	}
	if len(res.HighConfidence) == 0 {
		if err := os.Remove(highConfidencePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale %s: %w", highConfidencePath, err)
		}
		return nil
	}
	return SavePredictions(highConfidencePath, res.HighConfidence)
}
