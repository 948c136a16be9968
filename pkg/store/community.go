// Copyright 2024-2026 Aiku AI

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.mau.fi/util/dbutil"
)

// RoleKind classifies what part a channel plays in the relay network.
type RoleKind string

const (
	RoleSend             RoleKind = "send"
	RoleReceive          RoleKind = "receive"
	RoleReceiveSensitive RoleKind = "receive_sensitive"
)

// ReceiverKind returns the receiver role for a sensitivity class.
func ReceiverKind(sensitive bool) RoleKind {
	if sensitive {
		return RoleReceiveSensitive
	}
	return RoleReceive
}

// Community is a registered community with its relay configuration.
// AuthorizedSenders keeps set semantics even though it persists as a JSON
// array inside the row.
type Community struct {
	ID                string
	Name              string
	AuthorizedSenders []string
}

func newCommunity(_ *dbutil.QueryHelper[*Community]) *Community {
	return &Community{}
}

func (c *Community) Scan(row dbutil.Scannable) (*Community, error) {
	var sendersJSON string
	if err := row.Scan(&c.ID, &c.Name, &sendersJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sendersJSON), &c.AuthorizedSenders); err != nil {
		return nil, fmt.Errorf("unmarshal authorized senders for %s: %w", c.ID, err)
	}
	return c, nil
}

func (c *Community) sqlVariables() ([]any, error) {
	senders := c.AuthorizedSenders
	if senders == nil {
		senders = []string{}
	}
	sendersJSON, err := json.Marshal(senders)
	if err != nil {
		return nil, fmt.Errorf("marshal authorized senders for %s: %w", c.ID, err)
	}
	return []any{c.ID, c.Name, string(sendersJSON)}, nil
}

// IsAuthorizedSender reports whether the user may have content forwarded.
func (c *Community) IsAuthorizedSender(userID string) bool {
	return lo.Contains(c.AuthorizedSenders, userID)
}

// CommunityQuery is the community registry access layer.
type CommunityQuery struct {
	*dbutil.QueryHelper[*Community]
}

const (
	getCommunityQuery = `
		SELECT id, name, authorized_senders FROM community WHERE id = $1
	`
	listCommunitiesQuery = `
		SELECT id, name, authorized_senders FROM community
	`
	insertCommunityQuery = `
		INSERT INTO community (id, name, authorized_senders)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	upsertCommunityNameQuery = `
		INSERT INTO community (id, name, authorized_senders)
		VALUES ($1, $2, '[]')
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`
	updateSendersQuery = `
		UPDATE community SET authorized_senders = $2 WHERE id = $1
	`

	insertRoleQuery = `
		INSERT INTO channel_role (channel_id, kind, community_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, kind) DO NOTHING
	`
	deleteRoleQuery = `
		DELETE FROM channel_role
		WHERE community_id = $1 AND channel_id = $2 AND kind = $3
	`
	deleteReceiverQuery = `
		DELETE FROM channel_role WHERE community_id = $1 AND kind = $2
	`
	getReceiverQuery = `
		SELECT channel_id FROM channel_role WHERE community_id = $1 AND kind = $2
	`
	listSendersQuery = `
		SELECT channel_id FROM channel_role WHERE community_id = $1 AND kind = $2
	`
)

// Get returns the community or nil if it was never registered.
func (cq *CommunityQuery) Get(ctx context.Context, communityID string) (*Community, error) {
	return cq.QueryOne(ctx, getCommunityQuery, communityID)
}

// GetOrCreate returns the community, creating an empty record if absent.
func (cq *CommunityQuery) GetOrCreate(ctx context.Context, communityID string) (*Community, error) {
	if err := cq.Exec(ctx, insertCommunityQuery, communityID, "", "[]"); err != nil {
		return nil, err
	}
	return cq.Get(ctx, communityID)
}

// UpsertName records the community's current display name, creating the
// record if needed. The name is what the relay encodes into mirror usernames.
func (cq *CommunityQuery) UpsertName(ctx context.Context, communityID, name string) error {
	return cq.Exec(ctx, upsertCommunityNameQuery, communityID, name)
}

// List returns every registered community, in no particular order.
func (cq *CommunityQuery) List(ctx context.Context) ([]*Community, error) {
	return cq.QueryMany(ctx, listCommunitiesQuery)
}

// AddAuthorizedSender inserts a user into the community's sender set.
// Duplicates collapse.
func (cq *CommunityQuery) AddAuthorizedSender(ctx context.Context, communityID, userID string) error {
	return cq.GetDB().DoTxn(ctx, nil, func(ctx context.Context) error {
		community, err := cq.GetOrCreate(ctx, communityID)
		if err != nil {
			return err
		}
		community.AuthorizedSenders = lo.Uniq(append(community.AuthorizedSenders, userID))
		return cq.updateSenders(ctx, community)
	})
}

// RemoveAuthorizedSender removes a user from the sender set. The returned
// bool distinguishes "removed" from "was never in the set".
func (cq *CommunityQuery) RemoveAuthorizedSender(ctx context.Context, communityID, userID string) (bool, error) {
	var removed bool
	err := cq.GetDB().DoTxn(ctx, nil, func(ctx context.Context) error {
		community, err := cq.GetOrCreate(ctx, communityID)
		if err != nil {
			return err
		}
		if !lo.Contains(community.AuthorizedSenders, userID) {
			return nil
		}
		removed = true
		community.AuthorizedSenders = lo.Without(community.AuthorizedSenders, userID)
		return cq.updateSenders(ctx, community)
	})
	return removed, err
}

func (cq *CommunityQuery) updateSenders(ctx context.Context, community *Community) error {
	vars, err := community.sqlVariables()
	if err != nil {
		return err
	}
	// vars is (id, name, senders); the update only needs id and senders.
	return cq.Exec(ctx, updateSendersQuery, vars[0], vars[2])
}

// AddSenderChannel marks a channel as a send channel. Idempotent.
func (cq *CommunityQuery) AddSenderChannel(ctx context.Context, communityID, channelID string) error {
	return cq.GetDB().DoTxn(ctx, nil, func(ctx context.Context) error {
		if _, err := cq.GetOrCreate(ctx, communityID); err != nil {
			return err
		}
		return cq.Exec(ctx, insertRoleQuery, channelID, RoleSend, communityID)
	})
}

// RemoveSenderChannel removes a channel's send role. The returned bool
// distinguishes "removed" from "was not a sender".
func (cq *CommunityQuery) RemoveSenderChannel(ctx context.Context, communityID, channelID string) (bool, error) {
	senders, err := cq.ListSenderChannels(ctx, communityID)
	if err != nil {
		return false, err
	}
	if !lo.Contains(senders, channelID) {
		return false, nil
	}
	return true, cq.Exec(ctx, deleteRoleQuery, communityID, channelID, RoleSend)
}

// SetReceiverChannel designates the community's receiver for a sensitivity
// class, atomically replacing any prior receiver of that class.
func (cq *CommunityQuery) SetReceiverChannel(ctx context.Context, communityID, channelID string, sensitive bool) error {
	kind := ReceiverKind(sensitive)
	return cq.GetDB().DoTxn(ctx, nil, func(ctx context.Context) error {
		if _, err := cq.GetOrCreate(ctx, communityID); err != nil {
			return err
		}
		if err := cq.Exec(ctx, deleteReceiverQuery, communityID, kind); err != nil {
			return err
		}
		return cq.Exec(ctx, insertRoleQuery, channelID, kind, communityID)
	})
}

// GetReceiverChannel returns the receiver channel for a sensitivity class,
// or "" if none is configured.
func (cq *CommunityQuery) GetReceiverChannel(ctx context.Context, communityID string, sensitive bool) (string, error) {
	var channelID string
	err := cq.GetDB().QueryRow(ctx, getReceiverQuery, communityID, ReceiverKind(sensitive)).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return channelID, err
}

// RemoveReceiverChannel clears the receiver for a sensitivity class and
// returns the channel it pointed at, or "" if none was configured.
func (cq *CommunityQuery) RemoveReceiverChannel(ctx context.Context, communityID string, sensitive bool) (string, error) {
	var removed string
	kind := ReceiverKind(sensitive)
	err := cq.GetDB().DoTxn(ctx, nil, func(ctx context.Context) error {
		channelID, err := cq.GetReceiverChannel(ctx, communityID, sensitive)
		if err != nil || channelID == "" {
			return err
		}
		removed = channelID
		return cq.Exec(ctx, deleteReceiverQuery, communityID, kind)
	})
	return removed, err
}

// ListSenderChannels returns the community's send channels.
func (cq *CommunityQuery) ListSenderChannels(ctx context.Context, communityID string) ([]string, error) {
	rows, err := cq.GetDB().Query(ctx, listSendersQuery, communityID, RoleSend)
	return dbutil.NewRowIterWithError(rows, dbutil.ScanSingleColumn[string], err).AsList()
}
