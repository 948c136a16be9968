// Copyright 2024-2026 Aiku AI

// Package platform is a typed client for the chat platform's REST API. It
// covers only the surface the relay core consumes: resolving communities,
// channels and users, webhook management, message delivery and deletion, and
// attachment download.
package platform

import "context"

// API is the platform surface consumed by the relay core. *Client implements
// it against the real REST API; tests substitute fakes.
type API interface {
	Community(ctx context.Context, communityID string) (*Community, error)
	Channel(ctx context.Context, channelID string) (*Channel, error)
	User(ctx context.Context, userID string) (*User, error)
	// SearchMembers looks up members of a community whose display name
	// matches the query, most relevant first.
	SearchMembers(ctx context.Context, communityID, query string) ([]Member, error)

	ChannelWebhooks(ctx context.Context, channelID string) ([]Webhook, error)
	CreateWebhook(ctx context.Context, channelID, name string) (*Webhook, error)
	// ExecuteWebhook delivers a payload through a webhook, posting under
	// the payload's username and avatar, and returns the created message.
	ExecuteWebhook(ctx context.Context, webhook *Webhook, payload *SendPayload) (*Message, error)
	// SendMessage posts a payload to a channel as the relay's own identity
	// and returns the created message.
	SendMessage(ctx context.Context, channelID string, payload *SendPayload) (*Message, error)

	Message(ctx context.Context, channelID, messageID string) (*Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error

	DownloadAttachment(ctx context.Context, url string) ([]byte, error)
}
