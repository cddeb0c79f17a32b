// Package migrations embeds the SQL migration files so binaries carry
// their own schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
