package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charleschow/nhl-predictor/internal/core/evaluate"
	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/predict"
	"github.com/charleschow/nhl-predictor/internal/telemetry"
)

// maxPicks bounds the picks listed in one embed. Discord caps an embed
// description at 4096 characters.
const maxPicks = 15

type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func (n *Notifier) SendText(ctx context.Context, msg string) error {
	return n.send(ctx, webhookPayload{Content: msg})
}

func (n *Notifier) SendEmbed(ctx context.Context, embed Embed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return n.send(ctx, webhookPayload{Embeds: []Embed{embed}})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if !n.Enabled() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		telemetry.Warnf("discord: rate limited")
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}

	return nil
}

const (
	ColorGreen  = 0x2ECC71
	ColorRed    = 0xE74C3C
	ColorYellow = 0xF1C40F
	ColorBlue   = 0x3498DB
)

// HighConfidencePicks posts the ranked high-confidence games of a run.
// Nothing is sent when the list is empty.
func (n *Notifier) HighConfidencePicks(ctx context.Context, today time.Time, picks []predict.Record, bar float64, eval *evaluate.Report) error {
	if len(picks) == 0 {
		return nil
	}
	return n.SendEmbed(ctx, PicksEmbed(today, picks, bar, eval))
}

// PicksEmbed renders picks one per line, best first.
func PicksEmbed(today time.Time, picks []predict.Record, bar float64, eval *evaluate.Report) Embed {
	var b strings.Builder
	for i, p := range picks {
		if i == maxPicks {
			fmt.Fprintf(&b, "…and %d more", len(picks)-maxPicks)
			break
		}
		fmt.Fprintf(&b, "%s  **%s** vs %s  %.1f%%\n",
			p.Date.Format(games.DateLayout), p.HomeTeam, p.AwayTeam, p.HomeWinProbability*100)
	}

	embed := Embed{
		Title:       fmt.Sprintf("High-Confidence Home Wins (>%.0f%%) from %s", bar*100, today.Format(games.DateLayout)),
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       ColorGreen,
		Fields:      []Field{{Name: "Games", Value: fmt.Sprintf("%d", len(picks)), Inline: true}},
	}
	if eval != nil {
		embed.Fields = append(embed.Fields,
			Field{Name: "Backtest accuracy", Value: fmt.Sprintf("%.2f", eval.Accuracy), Inline: true},
			Field{Name: "Backtest precision", Value: fmt.Sprintf("%.2f", eval.Precision), Inline: true},
		)
	}
	return embed
}

// RefreshFailed posts a failed refresh.
func (n *Notifier) RefreshFailed(ctx context.Context, runID, trigger, reason string) error {
	return n.SendEmbed(ctx, Embed{
		Title:       "Prediction Refresh Failed",
		Description: reason,
		Color:       ColorRed,
		Fields: []Field{
			{Name: "Run", Value: runID, Inline: true},
			{Name: "Trigger", Value: trigger, Inline: true},
		},
	})
}
