// Package session is the per-stream entry point: it joins the shared
// connection's room, hydrates state over the pull path, wires the event
// router, and resets everything on navigation or auth changes.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fanpool/betsync/go/clients/bets_api_client"
	"github.com/fanpool/betsync/go/internal/betsync/conn"
	"github.com/fanpool/betsync/go/internal/betsync/events"
	"github.com/fanpool/betsync/go/internal/betsync/metrics"
	"github.com/fanpool/betsync/go/internal/betsync/mutation"
	"github.com/fanpool/betsync/go/internal/betsync/router"
	"github.com/fanpool/betsync/go/internal/betsync/store"
	"github.com/fanpool/betsync/go/internal/models"
)

// Connection is what the orchestrator needs from the shared session socket.
// *conn.Manager satisfies it.
type Connection interface {
	JoinRoom(streamID string) error
	LeaveRoom(streamID string) error
	Subscribe(event events.EventType, handler conn.Handler) *conn.Subscription
	OnReconnect(fn func())
}

// SnapshotAPI is the pull collaborator surface.
// *bets_api_client.BetsApiClient satisfies it.
type SnapshotAPI interface {
	GetBettingSnapshot(ctx context.Context, streamID, userID string) (*bets_api_client.BettingSnapshot, error)
	GetUserBet(ctx context.Context, roundID string) (*bets_api_client.UserBetSnapshot, error)
}

// Orchestrator drives the betting sync engine for one viewed stream.
type Orchestrator struct {
	streamID string
	userID   string

	conn    Connection
	api     SnapshotAPI
	rounds  *store.RoundStore
	bets    *store.BetStore
	coord   *mutation.Coordinator
	router  *router.Router
	metrics metrics.Collector

	mu              sync.Mutex
	active          bool
	subs            []*conn.Subscription
	currency        models.CurrencyType
	reconnectHooked bool
}

// NewOrchestrator wires an orchestrator from an already-constructed engine.
func NewOrchestrator(streamID, userID string, connection Connection, api SnapshotAPI, rounds *store.RoundStore, bets *store.BetStore, coord *mutation.Coordinator, rt *router.Router, collector metrics.Collector) *Orchestrator {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Orchestrator{
		streamID: streamID,
		userID:   userID,
		conn:     connection,
		api:      api,
		rounds:   rounds,
		bets:     bets,
		coord:    coord,
		router:   rt,
		metrics:  collector,
		currency: models.CurrencyGold,
	}
}

// Coordinator exposes the mutation entry points to the UI layer.
func (o *Orchestrator) Coordinator() *mutation.Coordinator { return o.coord }

// Ended is closed when the stream ends; the caller navigates away.
func (o *Orchestrator) Ended() <-chan struct{} { return o.router.Ended() }

// Activate joins the stream's room, hydrates over the pull path and
// subscribes the router to every inbound event.
func (o *Orchestrator) Activate(ctx context.Context) error {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return nil
	}
	o.active = true
	o.mu.Unlock()

	if err := o.conn.JoinRoom(o.streamID); err != nil {
		o.mu.Lock()
		o.active = false
		o.mu.Unlock()
		return err
	}

	if err := o.hydrate(ctx); err != nil {
		// Non-fatal: push events will fill the stores as they arrive.
		log.Warn().
			Err(err).
			Str("stream_id", o.streamID).
			Msg("initial hydration failed")
	}

	o.mu.Lock()
	for _, eventType := range events.InboundEventTypes() {
		o.subs = append(o.subs, o.conn.Subscribe(eventType, o.router.HandleEvent))
	}
	if !o.reconnectHooked {
		o.reconnectHooked = true
		o.conn.OnReconnect(o.handleReconnect)
	}
	o.mu.Unlock()

	log.Info().
		Str("stream_id", o.streamID).
		Str("user_id", o.userID).
		Msg("session activated")
	return nil
}

// Deactivate unsubscribes every handler and leaves the room.
func (o *Orchestrator) Deactivate() {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return
	}
	o.active = false
	subs := o.subs
	o.subs = nil
	o.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if err := o.conn.LeaveRoom(o.streamID); err != nil {
		log.Warn().
			Err(err).
			Str("stream_id", o.streamID).
			Msg("leave room failed")
	}
	log.Info().Str("stream_id", o.streamID).Msg("session deactivated")
}

// SetCurrency switches the payout display currency. Pool data already spans
// both currencies, so this is purely local.
func (o *Orchestrator) SetCurrency(cur models.CurrencyType) {
	if !cur.Valid() {
		return
	}
	o.mu.Lock()
	o.currency = cur
	o.mu.Unlock()
}

// PotentialDisplay returns the potential-winnings estimate for the current
// display currency, from cached values.
func (o *Orchestrator) PotentialDisplay() int64 {
	o.mu.Lock()
	cur := o.currency
	o.mu.Unlock()
	return o.bets.Potentials()[cur]
}

// ResetAuth performs the full reset-and-rejoin for an auth-session change.
func (o *Orchestrator) ResetAuth(ctx context.Context) error {
	o.Deactivate()
	o.rounds.Reset()
	o.bets.Clear()
	o.coord.Reset()
	return o.Activate(ctx)
}

// handleReconnect re-hydrates after the connection manager restored the
// socket; push handling resumes with a fresh generation counter.
func (o *Orchestrator) handleReconnect() {
	o.mu.Lock()
	active := o.active
	o.mu.Unlock()
	if !active {
		return
	}

	o.coord.Reset()
	if err := o.hydrate(context.Background()); err != nil {
		log.Warn().
			Err(err).
			Str("stream_id", o.streamID).
			Msg("post-reconnect hydration failed")
	}
}

// hydrate pulls a snapshot and reconciles it into the stores. Push events
// that arrived while the pull was in flight take precedence.
func (o *Orchestrator) hydrate(ctx context.Context) error {
	seqAtRequest := o.rounds.Seq()

	snapshot, err := o.api.GetBettingSnapshot(ctx, o.streamID, o.userID)
	if err != nil {
		return err
	}

	applied := o.rounds.ReconcilePull(snapshot.Round, snapshot.Locked, seqAtRequest)
	o.metrics.RecordPullReconcile(applied)
	o.bets.SetWallet(snapshot.Wallet)

	if snapshot.Round == nil || snapshot.Round.Status.Terminal() {
		return nil
	}
	if !o.coord.PullAllowed() {
		// Quiet window after a cancellation; skip the bet refetch.
		log.Debug().
			Str("stream_id", o.streamID).
			Msg("bet refetch suppressed by quiet window")
		return nil
	}

	userBet, err := o.api.GetUserBet(ctx, snapshot.Round.ID)
	if err != nil {
		return err
	}
	if userBet.Bet != nil {
		o.bets.HydratePull(*userBet.Bet)
	}
	if userBet.PotentialPayout != nil {
		o.bets.SetPotentials(userBet.PotentialPayout)
	}
	return nil
}
