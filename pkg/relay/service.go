// Copyright 2024-2026 Aiku AI

// Package relay is the core forwarding engine: it decides which inbound
// messages are eligible, fans them out to every peer community's receiver
// channel under an impersonated identity, keeps the mirror-to-source link
// ledger, and propagates deletions back across the network.
package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aiku/guildrelay/pkg/platform"
	"github.com/aiku/guildrelay/pkg/store"
)

// Registry is the community registry view the relay core reads during
// routing and fan-out. *store.CommunityQuery implements it; tests inject
// in-memory fakes.
type Registry interface {
	Get(ctx context.Context, communityID string) (*store.Community, error)
	List(ctx context.Context) ([]*store.Community, error)
	ListSenderChannels(ctx context.Context, communityID string) ([]string, error)
	GetReceiverChannel(ctx context.Context, communityID string, sensitive bool) (string, error)
}

// Ledger is the message link store the dispatcher writes and the propagator
// reads and deletes. *store.LinkQuery implements it.
type Ledger interface {
	Record(ctx context.Context, link *store.MessageLink) error
	BySource(ctx context.Context, sourceID string) ([]*store.MessageLink, error)
	DeleteByMirror(ctx context.Context, mirrorID string) error
	DeleteBySource(ctx context.Context, sourceID string) error
}

// Service wires the routing engine, dispatcher and delete propagator to the
// registry, ledger and platform client.
type Service struct {
	db       *store.Database
	registry Registry
	ledger   Ledger
	api      platform.API
	log      zerolog.Logger

	// webhookName identifies the relay's own webhooks on receiver channels.
	webhookName string
}

// NewService creates the relay service. webhookName should be the relay
// account's display name so its webhooks are recognizable to admins.
func NewService(db *store.Database, api platform.API, webhookName string, log zerolog.Logger) *Service {
	return &Service{
		db:          db,
		registry:    db.Community,
		ledger:      db.Link,
		api:         api,
		log:         log.With().Str("component", "relay").Logger(),
		webhookName: webhookName,
	}
}

// Registry exposes the community registry operations for the configuration
// surface (admin commands/API).
func (s *Service) Registry() *store.CommunityQuery {
	return s.db.Community
}

// HandleEvent dispatches a gateway notification to the matching handler.
// Notifications of different kinds may be in flight concurrently; each
// completes independently.
func (s *Service) HandleEvent(ctx context.Context, evt Event) error {
	switch e := evt.(type) {
	case *MessageEvent:
		return s.HandleMessageCreated(ctx, e)
	case *MessageDeleteEvent:
		return s.HandleMessageDeleted(ctx, e)
	case *ReactionEvent:
		return s.HandleReactionAdded(ctx, e)
	default:
		return fmt.Errorf("unhandled event kind %q", evt.Kind())
	}
}

// HandleMessageCreated evaluates an inbound message and, if eligible,
// relays it to every peer community.
func (s *Service) HandleMessageCreated(ctx context.Context, evt *MessageEvent) error {
	verdict, err := s.Evaluate(ctx, evt)
	if err != nil {
		return fmt.Errorf("evaluate message %s: %w", evt.MessageID, err)
	}
	if !verdict.Eligible {
		return nil
	}
	_, err = s.Dispatch(ctx, verdict)
	return err
}
