// Package db embeds the checkout schema so binaries can migrate a fresh
// database without shipping SQL files alongside them.
package db

import _ "embed"

// Schema holds the idempotent DDL for every checkout table, applied in one
// statement batch on startup.
//
//go:embed migrations/001_schema.sql
var Schema string
