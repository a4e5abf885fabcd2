// Package migrations embeds the schema migrations for the message archive.
package migrations

import "embed"

// FS exposes the numbered .sql migration pairs to the migrate iofs source.
//
//go:embed *.sql
var FS embed.FS
