// Copyright 2024-2026 Aiku AI

// Package store persists the community registry and the message link ledger.
// The two stores are independent; everything cross-references by identifier,
// never by in-memory pointer.
package store

import (
	"context"

	"go.mau.fi/util/dbutil"

	"github.com/aiku/guildrelay/pkg/store/upgrades"
)

// Database bundles the relay's persistent stores on one dbutil connection.
type Database struct {
	*dbutil.Database

	Community *CommunityQuery
	Link      *LinkQuery
}

// New wraps a dbutil database with the relay's query helpers and registers
// the schema upgrade table. Call Upgrade before first use.
func New(db *dbutil.Database) *Database {
	db.UpgradeTable = upgrades.Table
	return &Database{
		Database:  db,
		Community: &CommunityQuery{dbutil.MakeQueryHelper(db, newCommunity)},
		Link:      &LinkQuery{dbutil.MakeQueryHelper(db, newLink)},
	}
}

// Upgrade applies pending schema migrations.
func (db *Database) Upgrade(ctx context.Context) error {
	return db.Database.Upgrade(ctx)
}
