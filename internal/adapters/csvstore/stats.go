// Package csvstore reads the team box-score table and writes prediction
// tables as CSV files.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/teams"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"date", "team", "opponent", "venue"}

var statColumns = map[string]func(r *games.Record) *float64{
	"gf":          func(r *games.Record) *float64 { return &r.GoalsFor },
	"ga":          func(r *games.Record) *float64 { return &r.GoalsAgainst },
	"sog_for":     func(r *games.Record) *float64 { return &r.ShotsFor },
	"sog_against": func(r *games.Record) *float64 { return &r.ShotsAgainst },
	"pim_for":     func(r *games.Record) *float64 { return &r.PIMFor },
	"pim_against": func(r *games.Record) *float64 { return &r.PIMAgainst },
	"ppg_for":     func(r *games.Record) *float64 { return &r.PPGFor },
	"ppg_against": func(r *games.Record) *float64 { return &r.PPGAgainst },
	"ppo_for":     func(r *games.Record) *float64 { return &r.PPOFor },
	"ppo_against": func(r *games.Record) *float64 { return &r.PPOAgainst },
}

// ReadRecords parses a stats table. Columns are matched case-insensitively
// by name and may appear in any order; an unnamed leading index column is
// ignored. Empty stat cells read as 0. Rows that fail to parse are reported
// together with their line numbers.
func ReadRecords(r io.Reader, resolver *teams.Resolver) ([]games.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := colIdx[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var (
		out  []games.Record
		errs []error
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv.ParseError carries its own line number
			errs = append(errs, err)
			continue
		}
		line, _ := reader.FieldPos(0)
		rec, err := parseRow(row, colIdx, resolver)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		out = append(out, rec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func parseRow(row []string, colIdx map[string]int, resolver *teams.Resolver) (games.Record, error) {
	var rec games.Record
	var err error

	if rec.Date, err = games.ParseDay(getCol(row, colIdx, "date")); err != nil {
		return rec, err
	}
	rec.Team = resolver.Canonical(getCol(row, colIdx, "team"))
	rec.Opponent = resolver.Canonical(getCol(row, colIdx, "opponent"))
	if rec.Team == "" || rec.Opponent == "" {
		return rec, errors.New("empty team or opponent")
	}
	rec.Season = getCol(row, colIdx, "season")

	// blank venue means home in the source table
	if v := getCol(row, colIdx, "venue"); v == "" {
		rec.Venue = games.VenueHome
	} else if rec.Venue, err = games.ParseVenue(v); err != nil {
		return rec, err
	}
	if rec.Result, err = games.ParseResult(getCol(row, colIdx, "result")); err != nil {
		return rec, err
	}
	if rec.Overtime, err = games.ParseOvertime(getCol(row, colIdx, "ot")); err != nil {
		return rec, err
	}

	for name, field := range statColumns {
		v, err := getColFloat(row, colIdx, name)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", name, err)
		}
		*field(&rec) = v
	}
	return rec, nil
}

func getCol(row []string, colIdx map[string]int, name string) string {
	i, ok := colIdx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func getColFloat(row []string, colIdx map[string]int, name string) (float64, error) {
	s := getCol(row, colIdx, name)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// LoadRecords reads the stats table at path.
func LoadRecords(path string, resolver *teams.Resolver) ([]games.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stats table: %w", err)
	}
	defer f.Close()

	recs, err := ReadRecords(f, resolver)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	telemetry.Infof("stats table: loaded %d rows from %s", len(recs), path)
	return recs, nil
}

// FileSource re-reads a stats file on every Load. The file is refreshed by an
// external scraper.
type FileSource struct {
	Path     string
	Resolver *teams.Resolver
}

func (s FileSource) Load(ctx context.Context) ([]games.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadRecords(s.Path, s.Resolver)
}
