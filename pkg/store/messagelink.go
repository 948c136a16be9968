// Copyright 2024-2026 Aiku AI

package store

import (
	"context"

	"go.mau.fi/util/dbutil"
)

// MessageLink ties a mirror message to the source it was forwarded from.
// Links are write-once, delete-once; there is no update path.
type MessageLink struct {
	MirrorID         string
	SourceID         string
	SourceChannelID  string
	OwnerCommunityID string
}

func newLink(_ *dbutil.QueryHelper[*MessageLink]) *MessageLink {
	return &MessageLink{}
}

func (l *MessageLink) Scan(row dbutil.Scannable) (*MessageLink, error) {
	err := row.Scan(&l.MirrorID, &l.SourceID, &l.SourceChannelID, &l.OwnerCommunityID)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *MessageLink) sqlVariables() []any {
	return []any{l.MirrorID, l.SourceID, l.SourceChannelID, l.OwnerCommunityID}
}

// LinkQuery is the message link ledger access layer.
type LinkQuery struct {
	*dbutil.QueryHelper[*MessageLink]
}

const (
	insertLinkQuery = `
		INSERT INTO message_link (mirror_id, source_id, source_channel_id, owner_community_id)
		VALUES ($1, $2, $3, $4)
	`
	getLinksBySourceQuery = `
		SELECT mirror_id, source_id, source_channel_id, owner_community_id
		FROM message_link WHERE source_id = $1
	`
	getLinkByMirrorQuery = `
		SELECT mirror_id, source_id, source_channel_id, owner_community_id
		FROM message_link WHERE mirror_id = $1
	`
	deleteLinkByMirrorQuery = `
		DELETE FROM message_link WHERE mirror_id = $1
	`
	deleteLinksBySourceQuery = `
		DELETE FROM message_link WHERE source_id = $1
	`
)

// Record stores a link right after a successful delivery.
func (lq *LinkQuery) Record(ctx context.Context, link *MessageLink) error {
	return lq.Exec(ctx, insertLinkQuery, link.sqlVariables()...)
}

// BySource returns every link whose source is the given message.
func (lq *LinkQuery) BySource(ctx context.Context, sourceID string) ([]*MessageLink, error) {
	return lq.QueryMany(ctx, getLinksBySourceQuery, sourceID)
}

// ByMirror returns the link for a mirror message, or nil if none exists.
func (lq *LinkQuery) ByMirror(ctx context.Context, mirrorID string) (*MessageLink, error) {
	return lq.QueryOne(ctx, getLinkByMirrorQuery, mirrorID)
}

// DeleteByMirror removes the link for a single mirror.
func (lq *LinkQuery) DeleteByMirror(ctx context.Context, mirrorID string) error {
	return lq.Exec(ctx, deleteLinkByMirrorQuery, mirrorID)
}

// DeleteBySource removes every link recorded for a source message.
func (lq *LinkQuery) DeleteBySource(ctx context.Context, sourceID string) error {
	return lq.Exec(ctx, deleteLinksBySourceQuery, sourceID)
}
