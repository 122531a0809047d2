// Package router maps inbound push events onto store mutations, enforcing
// delivery order and idempotence. Handlers are pure functions of (current
// state, payload); duplicate delivery yields the same state as a single one.
package router

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fanpool/betsync/go/internal/betsync/events"
	"github.com/fanpool/betsync/go/internal/betsync/metrics"
	"github.com/fanpool/betsync/go/internal/betsync/mutation"
	"github.com/fanpool/betsync/go/internal/betsync/payout"
	"github.com/fanpool/betsync/go/internal/betsync/store"
	"github.com/fanpool/betsync/go/internal/models"
)

// Options tunes the router.
type Options struct {
	// FeeRate is the platform fee applied to potential-payout estimates.
	FeeRate float64
	// ResolveDisplayWindow is how long settlement stays on screen before the
	// round snapshot resets to a clean slate.
	ResolveDisplayWindow time.Duration
}

// DefaultOptions returns the default router settings.
func DefaultOptions() Options {
	return Options{
		FeeRate:              0.10,
		ResolveDisplayWindow: 5 * time.Second,
	}
}

// Router applies push events for one stream to its stores.
type Router struct {
	streamID string
	rounds   *store.RoundStore
	bets     *store.BetStore
	coord    *mutation.Coordinator
	clock    clockwork.Clock
	opts     Options
	metrics  metrics.Collector

	mu         sync.Mutex
	resetTimer clockwork.Timer
	ended      chan struct{}
	endOnce    sync.Once
	onNotice   func(message string)
}

// NewRouter creates a router bound to one stream's stores and coordinator.
func NewRouter(streamID string, rounds *store.RoundStore, bets *store.BetStore, coord *mutation.Coordinator, clock clockwork.Clock, opts Options, collector metrics.Collector) *Router {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Router{
		streamID: streamID,
		rounds:   rounds,
		bets:     bets,
		coord:    coord,
		clock:    clock,
		opts:     opts,
		metrics:  collector,
		ended:    make(chan struct{}),
	}
}

// OnNotice registers the callback for user-facing notices carried by events.
func (r *Router) OnNotice(fn func(message string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onNotice = fn
}

// Ended is closed when a streamEnded event arrives; the session tears down
// subscriptions and signals navigation away.
func (r *Router) Ended() <-chan struct{} {
	return r.ended
}

// HandleEvent applies one inbound event. Events for other streams are
// ignored; no ordering is needed across streams.
func (r *Router) HandleEvent(evt *events.BetEvent) {
	if evt.StreamID != "" && evt.StreamID != r.streamID {
		return
	}

	payload, err := events.ParseEventPayload(evt)
	if err != nil {
		log.Error().
			Err(err).
			Str("stream_id", r.streamID).
			Str("event", string(evt.Event)).
			Msg("dropping malformed event payload")
		r.metrics.RecordEventRouted(string(evt.Event), false)
		return
	}

	applied := true
	switch p := payload.(type) {
	case events.RoundOpenedPayload:
		r.handleRoundOpened(evt.Event, p)
	case events.PoolTotalsUpdatedPayload:
		r.handlePoolTotals(p)
	case events.PotentialAmountUpdatePayload:
		r.bets.SetPotentials(p.PotentialWinningsByCurrency)
	case events.RoundLockedPayload:
		r.rounds.SetLocked(p.LockedStatus)
	case events.BetConfirmedPayload:
		applied = r.handleBetConfirmed(evt.Event, p)
	case events.BetCancelledPayload:
		r.coord.AcceptCancellation()
		r.bets.Clear()
		r.bets.SetWallet(p.UpdatedWalletBalance)
		r.notify(p.Message)
	case events.BetCancelledByAdminPayload:
		r.bets.Clear()
		r.notify("your bet was cancelled by the stream admin")
	case events.WinnerDeclaredPayload:
		r.handleWinnerDeclared(p)
	case events.StreamEndedPayload:
		r.handleStreamEnded()
	case events.BotMessagePayload:
		r.handleBotMessage(p)
	default:
		log.Warn().
			Str("stream_id", r.streamID).
			Str("event", string(evt.Event)).
			Msg("unknown event type, ignoring")
		applied = false
	}

	r.metrics.RecordEventRouted(string(evt.Event), applied)
}

func (r *Router) handleRoundOpened(event events.EventType, p events.RoundOpenedPayload) {
	round := p.Round
	if round.Status == "" {
		if event == events.EventTypeRoundCreated {
			round.Status = models.RoundStatusCreated
		} else {
			round.Status = models.RoundStatusOpen
		}
	}
	r.cancelResetTimer()
	r.rounds.InstallRound(round)
	r.bets.Clear()
	r.coord.Reset()
	log.Info().
		Str("stream_id", r.streamID).
		Str("round_id", round.ID).
		Str("status", string(round.Status)).
		Msg("round installed")
}

func (r *Router) handlePoolTotals(p events.PoolTotalsUpdatedPayload) {
	r.rounds.MergeTotals(p.TotalsByCurrency)

	// Live estimate refresh from cached pools, O(1) per event.
	bet := r.bets.Bet()
	if !bet.Active() {
		return
	}
	round := r.rounds.Round()
	r.bets.SetPotentials(payout.EstimateByCurrency(round, bet, r.opts.FeeRate))
}

func (r *Router) handleBetConfirmed(event events.EventType, p events.BetConfirmedPayload) bool {
	kind := models.MutationPlace
	if event == events.EventTypeBetEdited {
		kind = models.MutationEdit
	}

	if err := r.coord.AcceptConfirmation(kind); err != nil {
		if errors.Is(err, mutation.ErrStaleConfirmation) {
			// In flight before a cancel; must never resurrect the bet.
			r.metrics.RecordStaleDiscard(string(event))
			log.Debug().
				Str("stream_id", r.streamID).
				Str("event", string(event)).
				Str("bet_id", p.Bet.ID).
				Msg("discarding confirmation older than cancellation marker")
			return false
		}
	}

	r.bets.ApplyConfirmed(p.Bet, p.UpdatedWalletBalance, p.PotentialWinningsByCurrency)
	r.notify(p.Message)
	return true
}

func (r *Router) handleWinnerDeclared(p events.WinnerDeclaredPayload) {
	r.rounds.SetWinner(models.Settlement{
		WinnerName:   p.WinnerName,
		Winners:      p.Winners,
		WinnerAmount: p.WinnerAmount,
	})

	bet := r.bets.Bet()
	if bet.Active() || bet.Status == models.BetStatusResolved {
		won := p.WinningOptionID != "" && bet.OptionID == p.WinningOptionID
		r.bets.Resolve(won, p.WinnerAmount)
	}

	r.notify("round resolved: " + p.WinnerName)
	r.scheduleReset()
}

func (r *Router) handleStreamEnded() {
	r.cancelResetTimer()
	r.rounds.Reset()
	r.bets.Clear()
	r.endOnce.Do(func() { close(r.ended) })
	log.Info().Str("stream_id", r.streamID).Msg("stream ended")
}

func (r *Router) handleBotMessage(p events.BotMessagePayload) {
	// Server rejections of in-flight mutations arrive out of band; roll back
	// when anything is pending, otherwise it is a plain notification.
	pending := r.coord.Pending(models.MutationPlace) ||
		r.coord.Pending(models.MutationEdit) ||
		r.coord.Pending(models.MutationCancel)
	if pending {
		r.coord.FailPending(p.Message)
		return
	}
	r.notify(p.Message)
}

// scheduleReset arms the post-resolution reset timer. Duplicate
// winnerDeclared deliveries reuse the already-armed timer.
func (r *Router) scheduleReset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resetTimer != nil {
		return
	}
	r.resetTimer = r.clock.AfterFunc(r.opts.ResolveDisplayWindow, func() {
		r.mu.Lock()
		r.resetTimer = nil
		r.mu.Unlock()
		r.rounds.Reset()
		r.bets.Clear()
		log.Debug().Str("stream_id", r.streamID).Msg("post-resolution reset")
	})
}

func (r *Router) cancelResetTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}
}

func (r *Router) notify(message string) {
	if message == "" {
		return
	}
	r.mu.Lock()
	fn := r.onNotice
	r.mu.Unlock()
	if fn != nil {
		fn(message)
	}
}
