package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Domain event names raised by the play engine. Each successful mutation
// raises exactly one event; delivery is somebody else's problem.
const (
	EventRebuyRecorded       = "rebuy:recorded"
	EventEliminationRecorded = "elimination:recorded"
	EventTimerChanged        = "timer:changed"
	EventStatusChanged       = "tournament:status"
)

type DomainEvent struct {
	Name         string    `json:"name"`
	TournamentID string    `json:"tournament_id"`
	PlayerID     string    `json:"player_id,omitempty"`
	Nickname     string    `json:"nickname,omitempty"`
	Kind         string    `json:"kind,omitempty"` // STANDARD, LIGHT, VOLUNTARY, bust, start, pause, ...
	At           time.Time `json:"at"`
}

// Broadcaster fans domain events out to connected viewers.
type Broadcaster interface {
	Publish(event DomainEvent)
}

type natsBroadcaster struct {
	nc *nats.Conn
}

// NewNATSBroadcaster connects to the broker and returns a broadcaster
// publishing on league.tournament.<id>.events.
func NewNATSBroadcaster(url string) (Broadcaster, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("POKER_LEAGUE_SYSTEM"),
		nats.PingInterval(5*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.MaxReconnects(-1), // reconnect forever
	)
	if err != nil {
		return nil, err
	}
	return &natsBroadcaster{nc: nc}, nil
}

func (b *natsBroadcaster) Publish(event DomainEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Events] marshal %s failed: %v", event.Name, err)
		return
	}
	subject := fmt.Sprintf("league.tournament.%s.events", event.TournamentID)
	if err := b.nc.Publish(subject, payload); err != nil {
		log.Printf("[Events] publish %s to %s failed: %v", event.Name, subject, err)
	}
}

// logBroadcaster is the fallback when NATS_URL is not configured.
type logBroadcaster struct{}

func NewLogBroadcaster() Broadcaster { return logBroadcaster{} }

func (logBroadcaster) Publish(event DomainEvent) {
	log.Printf("[Events] %s tournament=%s player=%s kind=%s",
		event.Name, event.TournamentID, event.PlayerID, event.Kind)
}
