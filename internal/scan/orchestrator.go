// Package scan drives heuristic scanning of a message source and keeps the
// detection store in step with what the user can see.
//
// A message that is already flagged is never re-evaluated by later scans.
// If its content changes in place the change is missed; in exchange a
// flagged message never flickers or collects duplicate warnings.
//
// A dismissed message stays dismissed for the rest of the session: later
// scans skip it until the source reports it removed.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/core"
	"github.com/mikey/phish-guard/internal/detection"
	"github.com/mikey/phish-guard/internal/events"
	"github.com/mikey/phish-guard/internal/heuristics"
)

// DefaultInterval is the periodic rescan interval
const DefaultInterval = 5 * time.Second

// Trigger names what started a scan
type Trigger string

const (
	TriggerInitial     Trigger = "initial"
	TriggerPeriodic    Trigger = "periodic"
	TriggerIncremental Trigger = "incremental"
	TriggerManual      Trigger = "manual"
)

// Reasons for the removal transition
const (
	ReasonRemoved   = "removed"
	ReasonDismissed = "dismissed"
)

// Result summarises one scan
type Result struct {
	Trigger    Trigger
	Scanned    int
	NewlyFound int
	Count      int
}

// Status is the one-line summary shown after a user-requested scan
func (r Result) Status() string {
	if r.NewlyFound > 0 {
		return fmt.Sprintf("Found %d new phishing emails (Total: %d)", r.NewlyFound, r.Count)
	}
	return fmt.Sprintf("No new phishing emails found (Total: %d)", r.Count)
}

// Orchestrator owns the detection store and applies scan and removal
// transitions to it. Transitions are serialised on the Run loop while it is
// active and are idempotent either way.
type Orchestrator struct {
	source   core.MessageSource
	rules    *heuristics.RuleSet
	store    *detection.Store
	renderer core.Renderer
	bus      *events.Bus
	logger   *zap.Logger
	interval time.Duration

	running  atomic.Bool
	requests chan func()
	added    chan struct{}

	loopMu   sync.Mutex
	loopDone chan struct{}

	pendingMu sync.Mutex
	pending   []removal
	removals  chan struct{}

	dismissedMu sync.Mutex
	dismissed   map[string]struct{}
}

type removal struct {
	messageID string
	reason    string
}

// New creates an orchestrator with a fresh detection store and subscribes
// to the source's change notifications. bus may be nil.
func New(
	source core.MessageSource,
	rules *heuristics.RuleSet,
	renderer core.Renderer,
	bus *events.Bus,
	logger *zap.Logger,
	interval time.Duration,
) *Orchestrator {
	if interval <= 0 {
		interval = DefaultInterval
	}

	o := &Orchestrator{
		source:    source,
		rules:     rules,
		store:     detection.NewStore(),
		renderer:  renderer,
		bus:       bus,
		logger:    logger,
		interval:  interval,
		requests:  make(chan func()),
		added:     make(chan struct{}, 1),
		removals:  make(chan struct{}, 1),
		dismissed: make(map[string]struct{}),
	}

	source.OnVisibleSetChanged(o.notifyAdded)
	source.OnMessageRemoved(func(id string) { o.enqueueRemoval(id, ReasonRemoved) })
	source.OnMessageOpened(func(id string) { o.enqueueRemoval(id, ReasonDismissed) })

	return o
}

// Store returns the detection store owned by the orchestrator
func (o *Orchestrator) Store() *detection.Store {
	return o.store
}

// Count returns the current phishing count
func (o *Orchestrator) Count() int {
	return o.store.Count()
}

// Run performs the initial scan and then rescans on every tick and every
// visible-set change until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("orchestrator already running")
	}
	defer o.running.Store(false)

	loopDone := make(chan struct{})
	o.loopMu.Lock()
	o.loopDone = loopDone
	o.loopMu.Unlock()
	defer close(loopDone)

	o.logger.Info("Scan orchestrator started", zap.Duration("interval", o.interval))

	o.runScan(ctx, TriggerInitial)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Scan orchestrator stopped", zap.Int("count", o.store.Count()))
			return nil
		case <-ticker.C:
			o.runScan(ctx, TriggerPeriodic)
		case <-o.added:
			o.runScan(ctx, TriggerIncremental)
		case <-o.removals:
			o.applyRemovals()
		case fn := <-o.requests:
			fn()
		}
	}
}

// ScanNow runs a user-requested scan. A source that cannot be read is
// reported on the rendering surface as well as returned.
func (o *Orchestrator) ScanNow(ctx context.Context) (Result, error) {
	var (
		res Result
		err error
	)
	if subErr := o.submit(ctx, func() { res, err = o.Scan(ctx, TriggerManual) }); subErr != nil {
		return Result{Trigger: TriggerManual, Count: o.store.Count()}, subErr
	}
	if err != nil {
		if errors.Is(err, core.ErrSourceUnavailable) {
			o.renderer.ShowError(core.ErrMessageNotFound.Error())
		} else {
			o.renderer.ShowError(err.Error())
		}
	}
	return res, err
}

// Dismiss clears the warning on messageID and reports whether one existed
func (o *Orchestrator) Dismiss(ctx context.Context, messageID string) (bool, error) {
	var existed bool
	if err := o.submit(ctx, func() { existed = o.remove(messageID, ReasonDismissed) }); err != nil {
		return false, err
	}
	return existed, nil
}

// Scan evaluates every visible message that is not already flagged and
// records the ones that match at least one rule.
func (o *Orchestrator) Scan(ctx context.Context, trigger Trigger) (Result, error) {
	res := Result{Trigger: trigger}
	o.applyRemovals()

	msgs, err := o.source.ListVisibleMessages(ctx)
	if err != nil {
		res.Count = o.store.Count()
		return res, fmt.Errorf("list visible messages: %w", err)
	}

	for _, msg := range msgs {
		if msg.ID == "" {
			msg.ID = core.SyntheticID(msg.Sender, msg.Content)
		}
		res.Scanned++

		if o.store.Has(msg.ID) || o.isDismissed(msg.ID) {
			continue
		}

		names := o.rules.EvaluateMessage(msg)
		if len(names) == 0 {
			continue
		}

		if !o.store.RecordIfAbsent(msg.ID, names) {
			continue
		}
		res.NewlyFound++

		o.logger.Info("Phishing indicators detected",
			zap.String("message_id", msg.ID),
			zap.String("sender", msg.Sender),
			zap.Strings("warnings", names))

		o.renderer.ShowWarning(msg.ID, o.rules.Describe(names))
		o.publish(events.Detected(events.DetectionDetails{
			MessageID: msg.ID,
			Sender:    msg.Sender,
			Warnings:  names,
		}))
	}

	res.Count = o.store.Count()
	if res.NewlyFound > 0 {
		o.renderer.UpdateCount(res.Count)
		o.publish(events.CountUpdate(res.Count))
	}

	o.logger.Debug("Scan complete",
		zap.String("trigger", string(trigger)),
		zap.Int("scanned", res.Scanned),
		zap.Int("new_found", res.NewlyFound),
		zap.Int("count", res.Count))

	return res, nil
}

// remove applies the removal transition for messageID
func (o *Orchestrator) remove(messageID, reason string) bool {
	existed := o.store.Remove(messageID)

	o.dismissedMu.Lock()
	switch {
	case reason == ReasonRemoved:
		delete(o.dismissed, messageID)
	case existed:
		o.dismissed[messageID] = struct{}{}
	}
	o.dismissedMu.Unlock()

	if !existed {
		return false
	}

	count := o.store.Count()
	o.logger.Info("Warning cleared",
		zap.String("message_id", messageID),
		zap.String("reason", reason),
		zap.Int("count", count))

	o.renderer.RetractWarning(messageID)
	o.renderer.UpdateCount(count)
	o.publish(events.CountUpdate(count))
	return true
}

func (o *Orchestrator) runScan(ctx context.Context, trigger Trigger) {
	if _, err := o.Scan(ctx, trigger); err != nil {
		o.logger.Warn("Scan failed",
			zap.String("trigger", string(trigger)),
			zap.Error(err))
	}
}

// submit runs fn on the Run loop when it is active, inline otherwise
func (o *Orchestrator) submit(ctx context.Context, fn func()) error {
	o.loopMu.Lock()
	loopDone := o.loopDone
	o.loopMu.Unlock()

	if !o.running.Load() || loopDone == nil {
		fn()
		return nil
	}

	done := make(chan struct{})
	select {
	case o.requests <- func() { fn(); close(done) }:
	case <-loopDone:
		fn()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) isDismissed(messageID string) bool {
	o.dismissedMu.Lock()
	defer o.dismissedMu.Unlock()

	_, ok := o.dismissed[messageID]
	return ok
}

func (o *Orchestrator) publish(ev events.Event) {
	if o.bus != nil {
		o.bus.Publish(ev)
	}
}

func (o *Orchestrator) notifyAdded() {
	select {
	case o.added <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) enqueueRemoval(messageID, reason string) {
	o.pendingMu.Lock()
	o.pending = append(o.pending, removal{messageID: messageID, reason: reason})
	o.pendingMu.Unlock()

	// without a Run loop nobody drains the queue
	if !o.running.Load() {
		o.applyRemovals()
		return
	}

	select {
	case o.removals <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) applyRemovals() {
	for _, r := range o.drainRemovals() {
		o.remove(r.messageID, r.reason)
	}
}

func (o *Orchestrator) drainRemovals() []removal {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()

	out := o.pending
	o.pending = nil
	return out
}
