// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"

	"github.com/aiku/guildrelay/pkg/store"
)

// HandleMessageDeleted cascades a source deletion to every linked mirror.
// Remote deletes are best-effort (the mirror may already be gone); the
// ledger rows are removed unconditionally afterwards so the ledger never
// keeps entries for sources that no longer exist.
func (s *Service) HandleMessageDeleted(ctx context.Context, evt *MessageDeleteEvent) error {
	links, err := s.ledger.BySource(ctx, evt.MessageID)
	if err != nil {
		return fmt.Errorf("load links for source %s: %w", evt.MessageID, err)
	}
	if len(links) == 0 {
		return nil
	}

	for _, link := range links {
		s.deleteMirror(ctx, link)
	}
	if err := s.ledger.DeleteBySource(ctx, evt.MessageID); err != nil {
		return fmt.Errorf("clear links for source %s: %w", evt.MessageID, err)
	}
	return nil
}

// deleteMirror attempts to remove a mirror message via the platform. The
// link does not record which receiver channel the mirror landed in, so both
// of the owner community's receiver classes are tried.
func (s *Service) deleteMirror(ctx context.Context, link *store.MessageLink) {
	for _, sensitive := range []bool{false, true} {
		channelID, err := s.registry.GetReceiverChannel(ctx, link.OwnerCommunityID, sensitive)
		if err != nil || channelID == "" {
			continue
		}
		if err := s.api.DeleteMessage(ctx, channelID, link.MirrorID); err == nil {
			return
		} else {
			s.log.Debug().Err(err).
				Str("mirror_id", link.MirrorID).
				Str("channel_id", channelID).
				Msg("Mirror delete attempt failed")
		}
	}
}

// HandleReactionAdded handles the moderation shortcut: the original author
// of a mirror can delete it by reacting with the moderation glyph. Every
// failure or mismatch is a silent no-op so the reactor learns nothing about
// whether a name match was attempted.
func (s *Service) HandleReactionAdded(ctx context.Context, evt *ReactionEvent) error {
	if evt.Emoji != ModerationEmoji {
		return nil
	}
	log := s.log.With().Str("message_id", evt.MessageID).Logger()

	message, err := s.api.Message(ctx, evt.ChannelID, evt.MessageID)
	if err != nil {
		log.Debug().Err(err).Msg("Could not fetch reacted message")
		return nil
	}

	claimed, _, ok := DecodeRelayName(message.Author.DisplayName)
	if !ok {
		// Not a mirror posted by the relay.
		return nil
	}

	reactor, err := s.api.User(ctx, evt.UserID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", evt.UserID).Msg("Could not resolve reactor")
		return nil
	}
	if reactor.DisplayName != claimed {
		log.Debug().
			Str("claimed", claimed).
			Str("reactor", reactor.DisplayName).
			Msg("Moderation reaction name mismatch")
		return nil
	}

	if err := s.api.DeleteMessage(ctx, evt.ChannelID, evt.MessageID); err != nil {
		log.Debug().Err(err).Msg("Moderation delete failed")
		return nil
	}
	if err := s.ledger.DeleteByMirror(ctx, evt.MessageID); err != nil {
		log.Error().Err(err).Msg("Failed to delete link after moderation delete")
	}
	return nil
}
