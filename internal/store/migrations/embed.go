// Package migrations embeds the goose SQL migrations of the encore database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
