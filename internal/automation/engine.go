package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"shopee-deal-bot/internal/models"
)

// State names the engine's current phase.
type State string

const (
	StateIdle        State = "idle"
	StateRunningStep State = "running-step"
	StateWaiting     State = "waiting"
)

// countdownUnset marks a countdown that is not currently running. Zero is a
// real value (the tick about to fire), so the sentinel is negative.
const countdownUnset = -1

// categories is the fixed discovery rotation. The index advances by one each
// time the candidate batch is refreshed.
var categories = []string{
	"mais vendidos hoje",
	"tecnologia eletronicos",
	"casa decoracao utilidades",
	"cozinha utilidades",
	"maquiagem beleza",
}

// Snapshot is the engine state exposed to the dashboard.
type Snapshot struct {
	Enabled     bool   `json:"isEnabled"`
	State       State  `json:"state"`
	Countdown   int    `json:"countdown"`
	MinInterval int    `json:"minInterval"`
	Category    string `json:"currentCategory"`
	LastPost    int64  `json:"lastPostTime,omitempty"`
	NextPost    int64  `json:"nextPostTime,omitempty"`
}

// Engine runs the hands-free posting loop. It is driven externally by a
// once-per-second Tick; it owns no goroutines and no timers, which keeps the
// countdown logic directly testable.
type Engine struct {
	gen     Generator
	sender  Sender
	history History
	cfg     ConfigSource
	logger  *slog.Logger

	mu          sync.Mutex
	enabled     bool
	state       State
	stepping    bool
	countdown   int
	minInterval int
	categoryIdx int
	batch       []models.Product
	lastPost    int64
	nextPost    int64
}

func NewEngine(gen Generator, sender Sender, history History, cfg ConfigSource, logger *slog.Logger) *Engine {
	return &Engine{
		gen:       gen,
		sender:    sender,
		history:   history,
		cfg:       cfg,
		logger:    logger,
		state:     StateIdle,
		countdown: countdownUnset,
	}
}

// Enable starts the loop. The first step runs on the next tick, with no
// initial countdown.
func (e *Engine) Enable(minIntervalMinutes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = true
	e.minInterval = minIntervalMinutes
	e.countdown = countdownUnset
	e.logger.Info("automation enabled", "minIntervalMinutes", minIntervalMinutes)
}

// Disable stops the loop and clears the countdown. A step already in flight
// finishes, but no new work is initiated afterwards.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
	e.state = StateIdle
	e.countdown = countdownUnset
	e.nextPost = 0
	e.logger.Info("automation disabled")
}

// SetBatch replaces the candidate batch, e.g. after a manual discovery run.
func (e *Engine) SetBatch(products []models.Product) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batch = products
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Enabled:     e.enabled,
		State:       e.state,
		Countdown:   e.countdown,
		MinInterval: e.minInterval,
		Category:    categories[e.categoryIdx],
		LastPost:    e.lastPost,
		NextPost:    e.nextPost,
	}
}

// Tick advances the loop by one second. While waiting it decrements the
// countdown; a step runs exactly once per zero-crossing. A tick arriving
// while a step is in flight is a no-op.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	if !e.enabled || e.stepping {
		e.mu.Unlock()
		return
	}
	if e.state == StateWaiting {
		e.countdown--
		if e.countdown > 0 {
			e.mu.Unlock()
			return
		}
	}
	e.stepping = true
	e.state = StateRunningStep
	e.countdown = countdownUnset
	e.mu.Unlock()

	err := e.runStep(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepping = false
	if err != nil {
		// Step failures are logged and absorbed; the loop never halts.
		e.logger.Error("automation step failed", "error", err)
	}
	if !e.enabled {
		e.state = StateIdle
		e.countdown = countdownUnset
		return
	}
	e.state = StateWaiting
	e.countdown = e.minInterval * 60
	e.nextPost = time.Now().Add(time.Duration(e.countdown) * time.Second).UnixMilli()
}

// runStep performs one post: pick the first unposted candidate (refreshing
// the batch if none remain), generate copy, send, and record the id on
// delivery.
func (e *Engine) runStep(ctx context.Context) error {
	cfg := e.cfg.Config()
	if !cfg.Ready() {
		return fmt.Errorf("%w: gateway not configured or inactive", models.ErrValidation)
	}

	product, err := e.nextCandidate(ctx)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("no unposted candidates after refresh")
	}

	deal, err := e.gen.GenerateCopy(ctx, product)
	if err != nil {
		return fmt.Errorf("copy generation for %s: %w", product.ID, err)
	}

	res, err := e.sender.Send(ctx, product, deal, "")
	if err != nil {
		return fmt.Errorf("send for %s: %w", product.ID, err)
	}
	if !res.OK {
		return fmt.Errorf("send for %s returned status %d", product.ID, res.StatusCode)
	}

	if err := e.history.AppendPosted(ctx, product.ID); err != nil {
		return fmt.Errorf("history append for %s: %w", product.ID, err)
	}

	e.mu.Lock()
	e.lastPost = time.Now().UnixMilli()
	e.mu.Unlock()

	e.logger.Info("automation posted product", "id", product.ID, "title", product.Title)
	return nil
}

// nextCandidate scans the batch in order for the first id not yet in the
// posted history. When the batch is exhausted it refreshes via discovery on
// the current category and advances the rotation by exactly one position.
func (e *Engine) nextCandidate(ctx context.Context) (*models.Product, error) {
	e.mu.Lock()
	batch := e.batch
	e.mu.Unlock()

	if p, err := e.firstUnposted(ctx, batch); err != nil || p != nil {
		return p, err
	}

	e.mu.Lock()
	category := categories[e.categoryIdx]
	e.categoryIdx = (e.categoryIdx + 1) % len(categories)
	e.mu.Unlock()

	e.logger.Info("automation batch exhausted, refreshing", "category", category)
	fresh, err := e.gen.DiscoverTrending(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("batch refresh: %w", err)
	}

	e.mu.Lock()
	e.batch = fresh
	e.mu.Unlock()

	return e.firstUnposted(ctx, fresh)
}

func (e *Engine) firstUnposted(ctx context.Context, batch []models.Product) (*models.Product, error) {
	for i := range batch {
		posted, err := e.history.IsPosted(ctx, batch[i].ID)
		if err != nil {
			return nil, fmt.Errorf("history lookup: %w", err)
		}
		if !posted {
			return &batch[i], nil
		}
	}
	return nil, nil
}

// CurrentCategory returns the category a discovery run should use, without
// moving the rotation.
func (e *Engine) CurrentCategory() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return categories[e.categoryIdx]
}

// AdvanceCategory moves the rotation forward and returns the category to use
// for a manual discovery run.
func (e *Engine) AdvanceCategory() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	category := categories[e.categoryIdx]
	e.categoryIdx = (e.categoryIdx + 1) % len(categories)
	return category
}
