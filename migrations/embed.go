// Package migrations embeds the SQL schema so binaries carry their own migrations.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql pair.
//
//go:embed *.sql
var FS embed.FS
