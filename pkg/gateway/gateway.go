// Copyright 2024-2026 Aiku AI

// Package gateway subscribes to the platform's event stream and feeds relay
// events to the core. It only translates wire frames; all relay decisions
// live in package relay.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aiku/guildrelay/pkg/platform"
	"github.com/aiku/guildrelay/pkg/relay"
)

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// EventHandler consumes decoded relay events. *relay.Service implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, evt relay.Event) error
}

// NameSink receives community display-name updates from the stream.
type NameSink interface {
	UpsertName(ctx context.Context, communityID, name string) error
}

// Gateway consumes the platform websocket and dispatches decoded events.
type Gateway struct {
	url      string
	token    string
	svc      EventHandler
	registry NameSink
	log      zerolog.Logger
}

// New creates a gateway consumer. Community name updates from the stream are
// written to the registry so mirror usernames carry fresh origin names.
func New(url, token string, svc EventHandler, registry NameSink, log zerolog.Logger) *Gateway {
	return &Gateway{
		url:      url,
		token:    token,
		svc:      svc,
		registry: registry,
		log:      log.With().Str("component", "gateway").Logger(),
	}
}

// Run connects and consumes events until the context is cancelled,
// reconnecting with capped backoff on stream failure.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		err := g.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.log.Warn().Err(err).Dur("retry_in", backoff).Msg("Gateway connection lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (g *Gateway) consume(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bot "+g.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	g.log.Info().Str("url", g.url).Msg("Gateway connected")

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame frame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.log.Warn().Err(err).Msg("Undecodable gateway frame")
			continue
		}
		g.handleFrame(ctx, &frame)
	}
}

// frame is one wire message from the event stream.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// handleFrame decodes a frame and hands it to the relay service. Each event
// runs in its own goroutine: notifications complete independently and there
// is no global serialization point.
func (g *Gateway) handleFrame(ctx context.Context, f *frame) {
	evt, err := g.decode(ctx, f)
	if err != nil {
		g.log.Warn().Err(err).Str("type", f.Type).Msg("Failed to decode gateway event")
		return
	}
	if evt == nil {
		return
	}
	go func() {
		if err := g.svc.HandleEvent(ctx, evt); err != nil {
			g.log.Error().Err(err).Str("type", f.Type).Msg("Event handling failed")
		}
	}()
}

type wireMessage struct {
	ID               string                `json:"id"`
	ChannelID        string                `json:"channel_id"`
	CommunityID      string                `json:"community_id"`
	CommunityName    string                `json:"community_name"`
	ChannelSensitive bool                  `json:"channel_sensitive"`
	Author           platform.User         `json:"author"`
	WebhookID        string                `json:"webhook_id"`
	Content          string                `json:"content"`
	Attachments      []platform.Attachment `json:"attachments"`
}

type wireReaction struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type wireCommunity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (g *Gateway) decode(ctx context.Context, f *frame) (relay.Event, error) {
	switch f.Type {
	case "message_create":
		var msg wireMessage
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return nil, err
		}
		return &relay.MessageEvent{
			MessageID:     msg.ID,
			ChannelID:     msg.ChannelID,
			CommunityID:   msg.CommunityID,
			CommunityName: msg.CommunityName,
			Sensitive:     msg.ChannelSensitive,
			Author:        msg.Author,
			ViaProxy:      msg.WebhookID != "",
			Content:       msg.Content,
			Attachments:   msg.Attachments,
		}, nil
	case "message_delete":
		var msg wireMessage
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return nil, err
		}
		return &relay.MessageDeleteEvent{MessageID: msg.ID}, nil
	case "reaction_add":
		var r wireReaction
		if err := json.Unmarshal(f.Data, &r); err != nil {
			return nil, err
		}
		return &relay.ReactionEvent{
			UserID:    r.UserID,
			ChannelID: r.ChannelID,
			MessageID: r.MessageID,
			Emoji:     r.Emoji,
		}, nil
	case "community_update":
		var c wireCommunity
		if err := json.Unmarshal(f.Data, &c); err != nil {
			return nil, err
		}
		return nil, g.registry.UpsertName(ctx, c.ID, c.Name)
	default:
		g.log.Trace().Str("type", f.Type).Msg("Unhandled gateway event type")
		return nil, nil
	}
}
