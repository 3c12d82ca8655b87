// Package migrations embeds the goose SQL migrations for the provenance
// schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
