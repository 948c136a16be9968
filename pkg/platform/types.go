// Copyright 2024-2026 Aiku AI

package platform

import "io"

// ChannelKind is the structural type of a channel as reported by the platform.
type ChannelKind string

const (
	ChannelText     ChannelKind = "text"
	ChannelNews     ChannelKind = "news"
	ChannelVoice    ChannelKind = "voice"
	ChannelCategory ChannelKind = "category"
	ChannelForum    ChannelKind = "forum"
)

// CanReceivePosts reports whether the channel kind can directly hold posted
// messages. Category and forum channels are containers, not destinations.
func (k ChannelKind) CanReceivePosts() bool {
	return k != ChannelCategory && k != ChannelForum
}

// SupportsWebhooks reports whether the channel kind accepts webhook delivery,
// which is what allows posting under an impersonated username and avatar.
func (k ChannelKind) SupportsWebhooks() bool {
	return k == ChannelText || k == ChannelNews
}

// Community is a platform guild/server.
type Community struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channel is a live channel as resolved from the platform.
type Channel struct {
	ID          string      `json:"id"`
	CommunityID string      `json:"community_id"`
	Name        string      `json:"name"`
	Kind        ChannelKind `json:"kind"`
	Sensitive   bool        `json:"sensitive"`
}

// User is a platform account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Bot         bool   `json:"bot"`
}

// Member is a user's community-scoped view, as returned by member search.
type Member struct {
	User
	CommunityID string `json:"community_id"`
}

// Attachment is a file attached to an inbound message.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Spoiler  bool   `json:"spoiler"`
}

// Message is a platform message, inbound or as returned by delivery calls.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	CommunityID string       `json:"community_id"`
	Author      User         `json:"author"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	// WebhookID is set when the message was posted through a webhook
	// rather than directly by its author.
	WebhookID string `json:"webhook_id"`
}

// Webhook is a delivery endpoint attached to a channel.
type Webhook struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
	Token     string `json:"token"`
}

// File is an outbound attachment payload.
type File struct {
	Name    string
	Reader  io.Reader
	Spoiler bool
}

// SendPayload is the content of an outbound delivery.
type SendPayload struct {
	Content string
	// Username and AvatarURL only apply to webhook delivery.
	Username  string
	AvatarURL string
	Files     []File
}
