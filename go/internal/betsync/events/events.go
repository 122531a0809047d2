package events

import (
	"encoding/json"
	"time"
)

// BetEvent is the envelope for every push event delivered over the socket.
type BetEvent struct {
	ID        string          `json:"id,omitempty"` // server event id, when present
	StreamID  string          `json:"streamId"`
	Event     EventType       `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType names a push event on the wire.
type EventType string

// Inbound (server -> client) events.
const (
	EventTypePoolTotalsUpdated     EventType = "poolTotalsUpdated"
	EventTypePotentialAmountUpdate EventType = "potentialAmountUpdate"
	EventTypeRoundLocked           EventType = "roundLocked"
	EventTypeBetConfirmed          EventType = "betConfirmed"
	EventTypeBetEdited             EventType = "betEdited"
	EventTypeBetCancelled          EventType = "betCancelled"
	EventTypeBetCancelledByAdmin   EventType = "betCancelledByAdmin"
	EventTypeRoundCreated          EventType = "roundCreated"
	EventTypeRoundOpened           EventType = "roundOpened"
	EventTypeWinnerDeclared        EventType = "winnerDeclared"
	EventTypeStreamEnded           EventType = "streamEnded"
	EventTypeBotMessage            EventType = "botMessage"
)

// Outbound (client -> server) requests.
const (
	EventTypePlaceBet    EventType = "placeBet"
	EventTypeEditBet     EventType = "editBet"
	EventTypeCancelBet   EventType = "cancelBet"
	EventTypeJoinStream  EventType = "joinStream"
	EventTypeLeaveStream EventType = "leaveStream"
)

// InboundEventTypes lists every event a session subscribes handlers for.
func InboundEventTypes() []EventType {
	return []EventType{
		EventTypePoolTotalsUpdated,
		EventTypePotentialAmountUpdate,
		EventTypeRoundLocked,
		EventTypeBetConfirmed,
		EventTypeBetEdited,
		EventTypeBetCancelled,
		EventTypeBetCancelledByAdmin,
		EventTypeRoundCreated,
		EventTypeRoundOpened,
		EventTypeWinnerDeclared,
		EventTypeStreamEnded,
		EventTypeBotMessage,
	}
}

// ParseEventPayload parses event data into the appropriate payload struct.
func ParseEventPayload(event *BetEvent) (interface{}, error) {
	switch event.Event {
	case EventTypePoolTotalsUpdated:
		var payload PoolTotalsUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePotentialAmountUpdate:
		var payload PotentialAmountUpdatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoundLocked:
		var payload RoundLockedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBetConfirmed, EventTypeBetEdited:
		var payload BetConfirmedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBetCancelled:
		var payload BetCancelledPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBetCancelledByAdmin:
		var payload BetCancelledByAdminPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoundCreated, EventTypeRoundOpened:
		var payload RoundOpenedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeWinnerDeclared:
		var payload WinnerDeclaredPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeStreamEnded:
		return StreamEndedPayload{}, nil

	case EventTypeBotMessage:
		var payload BotMessagePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
