package worker

import (
	"time"

	"github.com/domino14/reversi/config"
	"github.com/domino14/reversi/evaluator"
)

// WorkerConfig holds configuration for the search worker pool
type WorkerConfig struct {
	// Number of concurrent search workers
	Workers int

	// Used when a request carries no time limit
	DefaultTimeLimit time.Duration

	// Share of the job time limit handed to workers; the rest is left for
	// collecting and aggregating their answers.
	BudgetFraction float64

	// Floor for a single worker's budget in distributed mode
	MinWorkerBudget time.Duration

	// Used when a request carries no depth limit
	MaxDepth int

	// Evaluation gap inside which a safe move is preferred to a dangerous one
	DangerMargin int

	// Per-worker search settings
	TTMegabytes      int
	EndgameThreshold int
	AspirationWindow int
	QuiescenceDepth  int

	// Empty means randomly seeded tables
	ZobristSeed string

	// NewEvaluator builds the evaluator for each fresh worker. Nil means the
	// default phased evaluator.
	NewEvaluator func() evaluator.Evaluator
}

// DefaultWorkerConfig creates a WorkerConfig with default values
func DefaultWorkerConfig() *WorkerConfig {
	return NewWorkerConfig(config.DefaultConfig())
}

// NewWorkerConfig reads pool settings from the application config.
func NewWorkerConfig(cfg *config.Config) *WorkerConfig {
	return &WorkerConfig{
		Workers:          cfg.GetInt(config.ConfigWorkers),
		DefaultTimeLimit: cfg.GetDuration(config.ConfigDefaultTimeLimit),
		BudgetFraction:   cfg.GetFloat64(config.ConfigBudgetFraction),
		MinWorkerBudget:  cfg.GetDuration(config.ConfigMinWorkerBudget),
		MaxDepth:         cfg.GetInt(config.ConfigMaxDepth),
		DangerMargin:     cfg.GetInt(config.ConfigDangerMargin),
		TTMegabytes:      cfg.GetInt(config.ConfigTTMegabytes),
		EndgameThreshold: cfg.GetInt(config.ConfigEndgameThreshold),
		AspirationWindow: cfg.GetInt(config.ConfigAspirationWindow),
		QuiescenceDepth:  cfg.GetInt(config.ConfigQuiescenceDepth),
		ZobristSeed:      cfg.GetString(config.ConfigZobristSeed),
	}
}

func (wc *WorkerConfig) evaluator() evaluator.Evaluator {
	if wc.NewEvaluator != nil {
		return wc.NewEvaluator()
	}
	return evaluator.NewPhasedEvaluator()
}

// budget returns each worker's share of the total when split n ways.
func (wc *WorkerConfig) budget(total time.Duration, n int) time.Duration {
	frac := wc.BudgetFraction
	if frac <= 0 || frac > 1 {
		frac = 0.9
	}
	b := time.Duration(float64(total) * frac / float64(max(n, 1)))
	if b < wc.MinWorkerBudget {
		b = wc.MinWorkerBudget
	}
	if b > total {
		b = total
	}
	return b
}
