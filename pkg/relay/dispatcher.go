// Copyright 2024-2026 Aiku AI

package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/aiku/guildrelay/pkg/platform"
	"github.com/aiku/guildrelay/pkg/store"
)

// DeliveryResult is the outcome of one peer's delivery attempt.
type DeliveryResult struct {
	CommunityID string
	// MirrorID is the created mirror message, set on success.
	MirrorID string
	// Skipped is set when the peer had no usable receiver. Not a failure.
	Skipped bool
	Err     error
}

// Dispatch relays an eligible message to every community other than the
// origin. Deliveries run concurrently and fail independently: one peer's
// error never blocks the others. The returned error joins all fatal per-peer
// failures so the boundary can surface them to operators.
func (s *Service) Dispatch(ctx context.Context, verdict *Verdict) ([]DeliveryResult, error) {
	evt := verdict.Event

	communities, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	peers := lo.Filter(communities, func(c *store.Community, _ int) bool {
		return c.ID != evt.CommunityID
	})
	if len(peers) == 0 {
		return nil, nil
	}

	// Attachments are fetched once; each peer gets its own reader over the
	// same bytes.
	attachData := make([][]byte, len(evt.Attachments))
	for i, att := range evt.Attachments {
		data, err := s.api.DownloadAttachment(ctx, att.URL)
		if err != nil {
			return nil, fmt.Errorf("download attachment %s: %w", att.Filename, err)
		}
		attachData[i] = data
	}

	results := make([]DeliveryResult, len(peers))
	var wg sync.WaitGroup
	for i, peer := range peers {
		wg.Add(1)
		go func(i int, peer *store.Community) {
			defer wg.Done()
			results[i] = s.deliverTo(ctx, peer, verdict, attachData)
		}(i, peer)
	}
	wg.Wait()

	var fatal []error
	for _, res := range results {
		if res.Err != nil {
			s.log.Error().Err(res.Err).
				Str("community_id", res.CommunityID).
				Str("source_id", evt.MessageID).
				Msg("Delivery failed")
			fatal = append(fatal, fmt.Errorf("deliver to %s: %w", res.CommunityID, res.Err))
		}
	}
	return results, errors.Join(fatal...)
}

// deliverTo performs one peer's delivery: resolve the receiver, build the
// payload, send, and record the link.
func (s *Service) deliverTo(ctx context.Context, peer *store.Community, verdict *Verdict, attachData [][]byte) DeliveryResult {
	res := DeliveryResult{CommunityID: peer.ID}
	evt := verdict.Event

	receiverID, err := s.registry.GetReceiverChannel(ctx, peer.ID, verdict.Sensitive)
	if err != nil {
		res.Err = err
		return res
	}
	if receiverID == "" {
		res.Skipped = true
		return res
	}

	channel, err := s.api.Channel(ctx, receiverID)
	if err != nil {
		if platform.IsNotFound(err) {
			res.Skipped = true
			return res
		}
		res.Err = err
		return res
	}
	if !channel.Kind.CanReceivePosts() {
		res.Skipped = true
		return res
	}

	mirror, err := s.send(ctx, channel, verdict, attachData)
	if err != nil {
		res.Err = err
		return res
	}
	res.MirrorID = mirror.ID

	err = s.ledger.Record(ctx, &store.MessageLink{
		MirrorID:         mirror.ID,
		SourceID:         evt.MessageID,
		SourceChannelID:  evt.ChannelID,
		OwnerCommunityID: peer.ID,
	})
	if err != nil {
		res.Err = fmt.Errorf("record link for mirror %s: %w", mirror.ID, err)
		return res
	}

	// The moderation affordance is cosmetic; losing it does not fail the
	// delivery.
	if err := s.api.AddReaction(ctx, channel.ID, mirror.ID, ModerationEmoji); err != nil {
		s.log.Warn().Err(err).
			Str("mirror_id", mirror.ID).
			Msg("Failed to add moderation reaction")
	}

	return res
}

// send delivers the payload to a resolved receiver channel, impersonating
// the effective author where the channel kind allows it, and falling back to
// URL-only content when the platform rejects the payload size.
func (s *Service) send(ctx context.Context, channel *platform.Channel, verdict *Verdict, attachData [][]byte) (*platform.Message, error) {
	evt := verdict.Event
	files := makeFiles(evt.Attachments, attachData)

	if channel.Kind.SupportsWebhooks() {
		webhook, err := s.webhookFor(ctx, channel.ID)
		if err != nil {
			return nil, err
		}
		payload := &platform.SendPayload{
			Content:   evt.Content,
			Username:  EncodeRelayName(StripProxySuffix(verdict.Author.DisplayName), verdict.OriginName),
			AvatarURL: verdict.Author.AvatarURL,
			Files:     files,
		}
		mirror, err := s.api.ExecuteWebhook(ctx, webhook, payload)
		if platform.IsCode(err, platform.CodePayloadTooLarge) {
			s.log.Debug().Str("channel_id", channel.ID).Msg("Payload too large, retrying with attachment URLs")
			payload.Files = nil
			payload.Content = withAttachmentURLs(evt.Content, evt.Attachments)
			mirror, err = s.api.ExecuteWebhook(ctx, webhook, payload)
		}
		return mirror, err
	}

	// Channels without webhook support get a plain post as the relay
	// itself, with the origin spelled out in the body instead.
	payload := &platform.SendPayload{
		Content: fmt.Sprintf("(from:%s)\n%s", verdict.OriginName, evt.Content),
		Files:   files,
	}
	mirror, err := s.api.SendMessage(ctx, channel.ID, payload)
	if platform.IsCode(err, platform.CodePayloadTooLarge) {
		s.log.Debug().Str("channel_id", channel.ID).Msg("Payload too large, retrying with attachment URLs")
		payload.Files = nil
		payload.Content = withAttachmentURLs(payload.Content, evt.Attachments)
		mirror, err = s.api.SendMessage(ctx, channel.ID, payload)
	}
	return mirror, err
}

// webhookFor finds the relay's webhook on a channel, creating it on first
// use.
func (s *Service) webhookFor(ctx context.Context, channelID string) (*platform.Webhook, error) {
	webhooks, err := s.api.ChannelWebhooks(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks for %s: %w", channelID, err)
	}
	for i := range webhooks {
		if webhooks[i].Name == s.webhookName {
			return &webhooks[i], nil
		}
	}
	webhook, err := s.api.CreateWebhook(ctx, channelID, s.webhookName)
	if err != nil {
		return nil, fmt.Errorf("create webhook for %s: %w", channelID, err)
	}
	return webhook, nil
}

func makeFiles(attachments []platform.Attachment, data [][]byte) []platform.File {
	files := make([]platform.File, len(attachments))
	for i, att := range attachments {
		files[i] = platform.File{
			Name:    att.Filename,
			Reader:  bytes.NewReader(data[i]),
			Spoiler: att.Spoiler,
		}
	}
	return files
}

func withAttachmentURLs(content string, attachments []platform.Attachment) string {
	urls := lo.Map(attachments, func(att platform.Attachment, _ int) string {
		return att.URL
	})
	if content == "" {
		return strings.Join(urls, "\n")
	}
	return content + "\n" + strings.Join(urls, "\n")
}
