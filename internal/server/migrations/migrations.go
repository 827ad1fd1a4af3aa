// Package migrations embeds the server's Postgres schema, applied with goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
