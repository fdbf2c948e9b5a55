package games

import (
	"fmt"
	"strings"
	"time"
)

type Venue string

const (
	VenueHome Venue = "Home"
	VenueAway Venue = "Away"
)

// ParseVenue accepts the stats table's venue labels. The source marks road
// games with "@" and leaves home games blank before normalization, so both
// spellings are accepted.
func ParseVenue(s string) (Venue, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home", "h":
		return VenueHome, nil
	case "away", "a", "@":
		return VenueAway, nil
	}
	return "", fmt.Errorf("unknown venue %q", s)
}

// Result is the binary outcome from the team's perspective. Ties, overtime
// losses and shootout losses fold into ResultLoss.
type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "W"
	ResultLoss Result = "L"
)

func ParseResult(s string) (Result, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ResultNone, nil
	case "W":
		return ResultWin, nil
	case "L", "T", "OTL", "SOL", "OL":
		return ResultLoss, nil
	}
	return ResultNone, fmt.Errorf("unknown result %q", s)
}

type Overtime string

const (
	OvertimeNone     Overtime = ""
	OvertimeOT       Overtime = "OT"
	OvertimeShootout Overtime = "SO"
)

// ParseOvertime maps "OT", "2OT", "3OT"... to OvertimeOT and "SO" to
// OvertimeShootout.
func ParseOvertime(s string) (Overtime, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case v == "":
		return OvertimeNone, nil
	case v == "SO" || v == "SHOOTOUT":
		return OvertimeShootout, nil
	case strings.HasSuffix(v, "OT"):
		return OvertimeOT, nil
	}
	return OvertimeNone, fmt.Errorf("unknown overtime marker %q", s)
}

// Record is one team's box score for one game (a TeamGameRecord). Stats of
// games that have not been played are zero and Result is ResultNone.
type Record struct {
	Date     time.Time
	Season   string
	Team     string
	Opponent string
	Venue    Venue
	Result   Result
	Overtime Overtime

	GoalsFor     float64
	GoalsAgainst float64
	ShotsFor     float64
	ShotsAgainst float64
	PIMFor       float64
	PIMAgainst   float64
	PPGFor       float64
	PPGAgainst   float64
	PPOFor       float64
	PPOAgainst   float64
}

func (r Record) HasResult() bool { return r.Result != ResultNone }

func (r Record) Won() bool { return r.Result == ResultWin }

// IsFuture reports whether the game is on or after today. today must be a
// calendar day as returned by Day.
func (r Record) IsFuture(today time.Time) bool { return !r.Date.Before(today) }

func (r Record) WentToOvertime() bool {
	return r.Overtime == OvertimeOT || r.Overtime == OvertimeShootout
}

func (r Record) Stat(s Stat) float64 {
	switch s {
	case GoalsFor:
		return r.GoalsFor
	case GoalsAgainst:
		return r.GoalsAgainst
	case ShotsFor:
		return r.ShotsFor
	case ShotsAgainst:
		return r.ShotsAgainst
	case PIMFor:
		return r.PIMFor
	case PIMAgainst:
		return r.PIMAgainst
	case PPGFor:
		return r.PPGFor
	case PPGAgainst:
		return r.PPGAgainst
	case PPOFor:
		return r.PPOFor
	case PPOAgainst:
		return r.PPOAgainst
	}
	return 0
}

// Day truncates t to its calendar day, expressed at UTC midnight so that
// dates compare by value.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const DateLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD date, also accepting a trailing time component
// ("2024-01-10 00:00:00"), which is discarded.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
