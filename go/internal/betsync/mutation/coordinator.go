// Package mutation serializes the user's place/edit/cancel operations and
// arbitrates races between optimistic local state and delayed server
// confirmations, using a generation-counter discipline.
package mutation

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fanpool/betsync/go/internal/betsync/events"
	"github.com/fanpool/betsync/go/internal/betsync/metrics"
	"github.com/fanpool/betsync/go/internal/betsync/store"
	"github.com/fanpool/betsync/go/internal/models"
)

// Emitter sends one outbound frame. *conn.Manager satisfies it.
type Emitter interface {
	Emit(event events.EventType, payload any) error
}

// Options tunes the coordinator's timers.
type Options struct {
	// QuietWindow disables pull refetch of the bet after a cancellation, to
	// avoid racing an in-flight stale response.
	QuietWindow time.Duration
	// AckTimeout releases a pending mutation whose acknowledgment never
	// arrives, so the busy state cannot be stuck forever.
	AckTimeout time.Duration
}

// DefaultOptions returns the default timer settings.
func DefaultOptions() Options {
	return Options{
		QuietWindow: 2 * time.Second,
		AckTimeout:  15 * time.Second,
	}
}

type pendingMutation struct {
	req   models.MutationRequest
	timer clockwork.Timer
}

// Coordinator exposes placeBet/editBet/cancelBet for one user-round pair.
// At most one mutation of a given kind may be in flight at a time.
type Coordinator struct {
	emitter Emitter
	rounds  *store.RoundStore
	bets    *store.BetStore
	clock   clockwork.Clock
	opts    Options
	metrics metrics.Collector

	mu           sync.Mutex
	gen          uint64
	cancelGen    uint64
	quietUntil   time.Time
	pending      map[models.MutationKind]*pendingMutation
	lastAccepted map[models.MutationKind]uint64
	onNotice     func(message string)
}

// NewCoordinator creates a coordinator bound to one stream's stores.
func NewCoordinator(emitter Emitter, rounds *store.RoundStore, bets *store.BetStore, clock clockwork.Clock, opts Options, collector metrics.Collector) *Coordinator {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Coordinator{
		emitter:      emitter,
		rounds:       rounds,
		bets:         bets,
		clock:        clock,
		opts:         opts,
		metrics:      collector,
		pending:      make(map[models.MutationKind]*pendingMutation),
		lastAccepted: make(map[models.MutationKind]uint64),
	}
}

// OnNotice registers the callback for non-fatal notices (ack timeouts,
// server rejections).
func (c *Coordinator) OnNotice(fn func(message string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotice = fn
}

// PlaceBet validates and submits a new bet. Validation failures return before
// any network call.
func (c *Coordinator) PlaceBet(optionID string, amount int64, currency models.CurrencyType) error {
	if c.bets.Bet().Active() {
		c.metrics.RecordMutation(string(models.MutationPlace), "rejected_local")
		return ErrBetAlreadyPlaced
	}
	if err := c.validateStake(optionID, amount, currency, 0); err != nil {
		c.metrics.RecordMutation(string(models.MutationPlace), "rejected_local")
		return err
	}

	gen, err := c.begin(models.MutationPlace)
	if err != nil {
		c.metrics.RecordMutation(string(models.MutationPlace), "rejected_local")
		return err
	}

	round := c.rounds.Round()
	c.bets.ApplyPending(models.UserBet{
		RoundID:  round.ID,
		OptionID: optionID,
		Amount:   amount,
		Currency: currency,
	})

	req := events.PlaceBetRequest{
		BettingVariableID: optionID,
		Amount:            amount,
		CurrencyType:      currency,
	}
	if err := c.emitter.Emit(events.EventTypePlaceBet, req); err != nil {
		c.bets.Rollback()
		c.abort(models.MutationPlace, gen)
		c.metrics.RecordMutation(string(models.MutationPlace), "emit_failed")
		return err
	}

	c.metrics.RecordMutation(string(models.MutationPlace), "submitted")
	log.Info().
		Str("option_id", optionID).
		Int64("amount", amount).
		Str("currency", string(currency)).
		Uint64("generation", gen).
		Msg("placeBet submitted")
	return nil
}

// EditBet validates and submits a change to an existing bet. The balance
// check credits the stake already committed to this round, since editing
// notionally returns the prior stake first.
func (c *Coordinator) EditBet(betID, optionID string, amount int64, currency models.CurrencyType) error {
	current := c.bets.Bet()
	if current.ID == "" || current.ID != betID || !current.Active() {
		c.metrics.RecordMutation(string(models.MutationEdit), "rejected_local")
		return ErrNoBetToMutate
	}

	var committed int64
	if current.Currency == currency {
		committed = current.Amount
	}
	if err := c.validateStake(optionID, amount, currency, committed); err != nil {
		c.metrics.RecordMutation(string(models.MutationEdit), "rejected_local")
		return err
	}

	gen, err := c.begin(models.MutationEdit)
	if err != nil {
		c.metrics.RecordMutation(string(models.MutationEdit), "rejected_local")
		return err
	}

	pending := current
	pending.OptionID = optionID
	pending.Amount = amount
	pending.Currency = currency
	c.bets.ApplyPending(pending)

	req := events.EditBetRequest{
		BetID:                betID,
		NewBettingVariableID: optionID,
		NewAmount:            amount,
		NewCurrencyType:      currency,
	}
	if err := c.emitter.Emit(events.EventTypeEditBet, req); err != nil {
		c.bets.Rollback()
		c.abort(models.MutationEdit, gen)
		c.metrics.RecordMutation(string(models.MutationEdit), "emit_failed")
		return err
	}

	c.metrics.RecordMutation(string(models.MutationEdit), "submitted")
	log.Info().
		Str("bet_id", betID).
		Str("option_id", optionID).
		Int64("amount", amount).
		Uint64("generation", gen).
		Msg("editBet submitted")
	return nil
}

// CancelBet withdraws the bet. The local bet state is cleared immediately and
// the cancellation generation marker raised, so any confirmation that was in
// flight before the cancel can never resurrect the bet.
func (c *Coordinator) CancelBet(betID string, currency models.CurrencyType) error {
	current := c.bets.Bet()
	// A pending placement has no server id yet; an empty betID cancels it.
	if !current.Active() || current.ID != betID {
		c.metrics.RecordMutation(string(models.MutationCancel), "rejected_local")
		return ErrNoBetToMutate
	}

	round := c.rounds.Round()
	if round == nil {
		c.metrics.RecordMutation(string(models.MutationCancel), "rejected_local")
		return ErrNoActiveRound
	}
	if round.Status == models.RoundStatusWinner {
		c.metrics.RecordMutation(string(models.MutationCancel), "rejected_local")
		return ErrRoundResolved
	}
	if c.rounds.Locked() {
		c.metrics.RecordMutation(string(models.MutationCancel), "rejected_local")
		return ErrRoundLocked
	}

	gen, err := c.begin(models.MutationCancel)
	if err != nil {
		c.metrics.RecordMutation(string(models.MutationCancel), "rejected_local")
		return err
	}

	// Raise the marker before the frame goes out, so a confirmation racing in
	// through the read pump is already stale by the time it is checked.
	c.mu.Lock()
	prevCancelGen := c.cancelGen
	prevQuietUntil := c.quietUntil
	c.cancelGen = gen
	c.quietUntil = c.clock.Now().Add(c.opts.QuietWindow)
	c.mu.Unlock()

	req := events.CancelBetRequest{BetID: betID, CurrencyType: currency}
	if err := c.emitter.Emit(events.EventTypeCancelBet, req); err != nil {
		// The cancel never left the client; drop the marker so in-flight
		// confirmations still apply and the bet stays in place.
		c.mu.Lock()
		c.cancelGen = prevCancelGen
		c.quietUntil = prevQuietUntil
		c.mu.Unlock()
		c.abort(models.MutationCancel, gen)
		c.metrics.RecordMutation(string(models.MutationCancel), "emit_failed")
		return err
	}

	c.bets.Clear()

	c.metrics.RecordMutation(string(models.MutationCancel), "submitted")
	log.Info().
		Str("bet_id", betID).
		Uint64("generation", gen).
		Msg("cancelBet submitted, cancellation marker raised")
	return nil
}

// AcceptConfirmation is called by the event router when a betConfirmed or
// betEdited payload arrives. It resolves the pending slot and decides the
// cancel-vs-stale-confirmation race: a confirmation whose generation does not
// postdate the cancellation marker returns ErrStaleConfirmation and must be
// discarded.
func (c *Coordinator) AcceptConfirmation(kind models.MutationKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireQuietLocked()

	gen := c.lastAccepted[kind]
	if p, ok := c.pending[kind]; ok {
		gen = p.req.Generation
		stopAndDrainTimer(p.timer)
		delete(c.pending, kind)
	}

	if c.cancelGen > 0 && gen <= c.cancelGen {
		log.Debug().
			Str("kind", string(kind)).
			Uint64("generation", gen).
			Uint64("cancel_generation", c.cancelGen).
			Msg("confirmation predates cancellation marker")
		return ErrStaleConfirmation
	}

	c.lastAccepted[kind] = gen
	c.metrics.RecordMutation(string(kind), "confirmed")
	return nil
}

// AcceptCancellation resolves the pending cancel slot when betCancelled
// arrives. Idempotent under duplicate delivery.
func (c *Coordinator) AcceptCancellation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[models.MutationCancel]; ok {
		stopAndDrainTimer(p.timer)
		delete(c.pending, models.MutationCancel)
		c.metrics.RecordMutation(string(models.MutationCancel), "confirmed")
	}
}

// FailPending clears every pending slot and rolls the bet back to the last
// known-good snapshot. Used for server rejections.
func (c *Coordinator) FailPending(message string) {
	c.mu.Lock()
	var kinds []models.MutationKind
	for kind, p := range c.pending {
		stopAndDrainTimer(p.timer)
		delete(c.pending, kind)
		kinds = append(kinds, kind)
	}
	notice := c.onNotice
	c.mu.Unlock()

	if len(kinds) == 0 {
		return
	}
	for _, kind := range kinds {
		c.metrics.RecordMutation(string(kind), "rejected_server")
	}
	c.bets.Rollback()
	log.Warn().
		Int("pending", len(kinds)).
		Str("message", message).
		Msg("server rejected pending mutation, rolled back")
	if notice != nil {
		notice(message)
	}
}

// Pending reports whether a mutation of the given kind is awaiting its
// acknowledgment. The UI uses this as the busy flag.
func (c *Coordinator) Pending(kind models.MutationKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[kind]
	return ok
}

// PullAllowed reports whether pull-based refetch of the bet may run. False
// during the post-cancellation quiet window.
func (c *Coordinator) PullAllowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireQuietLocked()
	return c.quietUntil.IsZero()
}

// Reset restarts the generation discipline with a fresh counter. Called when
// a new round opens and after a reconnect re-hydration.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, p := range c.pending {
		stopAndDrainTimer(p.timer)
		delete(c.pending, kind)
	}
	c.gen = 0
	c.cancelGen = 0
	c.quietUntil = time.Time{}
	c.lastAccepted = make(map[models.MutationKind]uint64)
}

// validateStake runs the local pre-network checks shared by place and edit.
// committed is the stake editing would notionally return first.
func (c *Coordinator) validateStake(optionID string, amount int64, currency models.CurrencyType, committed int64) error {
	if optionID == "" {
		return ErrNoOptionSelected
	}
	if amount <= 0 {
		return ErrNonPositiveAmount
	}

	round := c.rounds.Round()
	if round == nil {
		return ErrNoActiveRound
	}
	if c.rounds.Locked() || round.Status == models.RoundStatusLocked {
		return ErrRoundLocked
	}
	if round.Status != models.RoundStatusOpen {
		return ErrRoundNotOpen
	}
	if _, ok := round.Option(optionID); !ok {
		return ErrUnknownOption
	}

	if amount > c.bets.Balance(currency)+committed {
		return ErrInsufficientBalance
	}
	return nil
}

// begin claims the pending slot for a kind and assigns the next generation.
func (c *Coordinator) begin(kind models.MutationKind) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[kind]; ok {
		return 0, ErrMutationPending
	}

	c.gen++
	gen := c.gen
	p := &pendingMutation{
		req: models.MutationRequest{
			Generation:  gen,
			Kind:        kind,
			SubmittedAt: c.clock.Now(),
		},
	}
	if c.opts.AckTimeout > 0 {
		p.timer = c.clock.AfterFunc(c.opts.AckTimeout, func() {
			c.expirePending(kind, gen)
		})
	}
	c.pending[kind] = p
	return gen, nil
}

// abort releases a pending slot claimed by begin when the emit failed.
func (c *Coordinator) abort(kind models.MutationKind, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[kind]; ok && p.req.Generation == gen {
		stopAndDrainTimer(p.timer)
		delete(c.pending, kind)
	}
}

// expirePending releases a pending slot whose acknowledgment never arrived.
func (c *Coordinator) expirePending(kind models.MutationKind, gen uint64) {
	c.mu.Lock()
	p, ok := c.pending[kind]
	if !ok || p.req.Generation != gen {
		c.mu.Unlock()
		return
	}
	delete(c.pending, kind)
	notice := c.onNotice
	c.mu.Unlock()

	if kind == models.MutationPlace || kind == models.MutationEdit {
		c.bets.Rollback()
	}
	c.metrics.RecordMutation(string(kind), "timeout")
	log.Warn().
		Str("kind", string(kind)).
		Uint64("generation", gen).
		Msg("mutation acknowledgment timed out")
	if notice != nil {
		notice("request timed out, please retry")
	}
}

// expireQuietLocked clears the cancellation marker once the quiet window has
// elapsed with no further disruptive events. Caller holds c.mu.
func (c *Coordinator) expireQuietLocked() {
	if !c.quietUntil.IsZero() && !c.clock.Now().Before(c.quietUntil) {
		c.quietUntil = time.Time{}
		c.cancelGen = 0
	}
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
