// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"

	"github.com/samber/lo"

	"github.com/aiku/guildrelay/pkg/platform"
)

// Verdict is the outcome of evaluating an inbound message. A non-eligible
// verdict is not an error: most messages on most communities are simply not
// relay material.
type Verdict struct {
	Eligible bool
	// Author is the resolved effective author, which for proxy-delivered
	// messages is the real member behind the proxy identity.
	Author platform.User
	// Sensitive classifies which receiver channel class the message
	// targets on each peer.
	Sensitive bool
	// OriginName is the origin community's display name, encoded into the
	// mirror's impersonation username.
	OriginName string
	Event      *MessageEvent
}

// Evaluate runs the routing decision pipeline. Every rejection branch is a
// silent no-op by design; an error is only returned for registry failures.
func (s *Service) Evaluate(ctx context.Context, evt *MessageEvent) (*Verdict, error) {
	rejected := &Verdict{Eligible: false, Event: evt}
	log := s.log.With().Str("message_id", evt.MessageID).Logger()

	// Pre-filter: skip text-only chatter before touching any state.
	if len(evt.Attachments) == 0 && !HasMediaExtension(evt.Content) {
		return rejected, nil
	}

	// Direct and group conversations have no owning community.
	if evt.CommunityID == "" {
		return rejected, nil
	}

	// Automated authors are skipped unless an impersonation proxy posted
	// on behalf of a human.
	if evt.Author.Bot && !evt.ViaProxy {
		return rejected, nil
	}

	community, err := s.registry.Get(ctx, evt.CommunityID)
	if err != nil {
		return nil, err
	}
	if community == nil {
		log.Debug().Str("community_id", evt.CommunityID).Msg("Community not registered, skipping")
		return rejected, nil
	}

	senders, err := s.registry.ListSenderChannels(ctx, evt.CommunityID)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(senders, evt.ChannelID) {
		return rejected, nil
	}

	author, ok := s.resolveEffectiveAuthor(ctx, evt)
	if !ok {
		log.Debug().Str("display_name", evt.Author.DisplayName).Msg("Could not resolve effective author")
		return rejected, nil
	}

	if !community.IsAuthorizedSender(author.ID) {
		log.Debug().Str("user_id", author.ID).Msg("Author not in authorized senders")
		return rejected, nil
	}

	originName := evt.CommunityName
	if originName == "" {
		originName = community.Name
	}

	return &Verdict{
		Eligible:   true,
		Author:     author,
		Sensitive:  evt.Sensitive,
		OriginName: originName,
		Event:      evt,
	}, nil
}

// resolveEffectiveAuthor maps the literal message author to the person the
// message is really from. Proxy-delivered messages carry a synthetic author,
// so the real member is looked up by display name in the origin community.
func (s *Service) resolveEffectiveAuthor(ctx context.Context, evt *MessageEvent) (platform.User, bool) {
	if !evt.ViaProxy {
		return evt.Author, true
	}

	name := StripProxySuffix(evt.Author.DisplayName)
	members, err := s.api.SearchMembers(ctx, evt.CommunityID, name)
	if err != nil {
		s.log.Debug().Err(err).Str("query", name).Msg("Member search failed")
		return platform.User{}, false
	}
	if len(members) == 0 || members[0].Bot {
		return platform.User{}, false
	}
	return members[0].User, true
}
