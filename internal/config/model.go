package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/charleschow/nhl-predictor/internal/core/games"
	"github.com/charleschow/nhl-predictor/internal/core/matchup"
	"github.com/charleschow/nhl-predictor/internal/core/model"
)

//go:embed model_defaults.yaml
var modelDefaults []byte

type ClassifierConfig struct {
	Trees          int     `yaml:"trees"`
	LearningRate   float64 `yaml:"learning_rate"`
	MaxDepth       int     `yaml:"max_depth"`
	MinChildWeight float64 `yaml:"min_child_weight"`
	Lambda         float64 `yaml:"lambda"`
	Gamma          float64 `yaml:"gamma"`
	Subsample      float64 `yaml:"subsample"`
	ColSample      float64 `yaml:"colsample"`
	Seed           uint64  `yaml:"seed"`
}

func (c ClassifierConfig) Model() model.Config {
	return model.Config{
		Trees:          c.Trees,
		LearningRate:   c.LearningRate,
		MaxDepth:       c.MaxDepth,
		MinChildWeight: c.MinChildWeight,
		Lambda:         c.Lambda,
		Gamma:          c.Gamma,
		Subsample:      c.Subsample,
		ColSample:      c.ColSample,
		Seed:           c.Seed,
	}
}

type ModelConfig struct {
	Window          int               `yaml:"window"`
	Threshold       float64           `yaml:"threshold"`
	ConfidenceBar   float64           `yaml:"confidence_bar"`
	HoldoutFraction float64           `yaml:"holdout_fraction"`
	EvalCutoff      float64           `yaml:"eval_cutoff"`
	RollingStats    []string          `yaml:"rolling_stats"`
	FeatureSet      string            `yaml:"feature_set"`
	Features        []string          `yaml:"features"`
	Classifier      ClassifierConfig  `yaml:"classifier"`
	TeamAliases     map[string]string `yaml:"team_aliases"`
}

// DefaultModelConfig returns the embedded defaults.
func DefaultModelConfig() ModelConfig {
	var mc ModelConfig
	if err := yaml.Unmarshal(modelDefaults, &mc); err != nil {
		panic(fmt.Sprintf("embedded model defaults: %v", err))
	}
	return mc
}

// LoadModelConfig overlays the YAML file at path on the embedded defaults.
// An empty path returns the defaults.
func LoadModelConfig(path string) (ModelConfig, error) {
	mc := DefaultModelConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ModelConfig{}, fmt.Errorf("read model config: %w", err)
		}
		if err := yaml.Unmarshal(data, &mc); err != nil {
			return ModelConfig{}, fmt.Errorf("parse model config: %w", err)
		}
	}
	if err := mc.Validate(); err != nil {
		return ModelConfig{}, err
	}
	return mc, nil
}

// ValidationErrors lists every invalid parameter at once.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return "invalid model config: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error { return v }

func (mc ModelConfig) Validate() error {
	var errs ValidationErrors
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if mc.Window < 1 {
		add("window must be at least 1, got %d", mc.Window)
	}
	if mc.Threshold <= 0 || mc.Threshold >= 1 {
		add("threshold must be in (0,1), got %g", mc.Threshold)
	}
	if mc.ConfidenceBar <= 0 || mc.ConfidenceBar >= 1 {
		add("confidence_bar must be in (0,1), got %g", mc.ConfidenceBar)
	}
	if mc.HoldoutFraction <= 0 || mc.HoldoutFraction >= 1 {
		add("holdout_fraction must be in (0,1), got %g", mc.HoldoutFraction)
	}
	if mc.EvalCutoff <= 0 || mc.EvalCutoff >= 1 {
		add("eval_cutoff must be in (0,1), got %g", mc.EvalCutoff)
	}
	if err := mc.Classifier.Model().Validate(); err != nil {
		add("classifier: %w", err)
	}
	stats, err := mc.Stats()
	if err != nil {
		errs = append(errs, err)
	} else if _, err := matchup.ResolveFeatures(mc.FeatureSet, mc.Features, stats); err != nil {
		add("features: %w", err)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (mc ModelConfig) Stats() ([]games.Stat, error) {
	if len(mc.RollingStats) == 0 {
		return nil, errors.New("rolling_stats is empty")
	}
	return games.ParseStats(mc.RollingStats)
}

// FeatureNames resolves the configured feature list.
func (mc ModelConfig) FeatureNames() ([]string, error) {
	stats, err := mc.Stats()
	if err != nil {
		return nil, err
	}
	return matchup.ResolveFeatures(mc.FeatureSet, mc.Features, stats)
}
