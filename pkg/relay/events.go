// Copyright 2024-2026 Aiku AI

package relay

import "github.com/aiku/guildrelay/pkg/platform"

// EventKind identifies an inbound gateway notification type.
type EventKind string

const (
	EventMessageCreated EventKind = "message_created"
	EventMessageDeleted EventKind = "message_deleted"
	EventReactionAdded  EventKind = "reaction_added"
)

// Event is an inbound notification from the gateway layer.
type Event interface {
	Kind() EventKind
}

// MessageEvent is a message-created notification.
type MessageEvent struct {
	MessageID string
	ChannelID string
	// CommunityID is empty for direct/group conversations.
	CommunityID   string
	CommunityName string
	// Sensitive is set when the origin channel is flagged for mature content.
	Sensitive bool
	Author    platform.User
	// ViaProxy is set when the message arrived through a webhook-style
	// impersonation proxy rather than directly from its author.
	ViaProxy    bool
	Content     string
	Attachments []platform.Attachment
}

func (*MessageEvent) Kind() EventKind { return EventMessageCreated }

// MessageDeleteEvent is a message-deleted notification.
type MessageDeleteEvent struct {
	MessageID string
}

func (*MessageDeleteEvent) Kind() EventKind { return EventMessageDeleted }

// ReactionEvent is a reaction-added notification.
type ReactionEvent struct {
	UserID    string
	ChannelID string
	MessageID string
	Emoji     string
}

func (*ReactionEvent) Kind() EventKind { return EventReactionAdded }
