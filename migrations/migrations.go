// Package migrations embeds the schema files applied by `clipgate migrate`.
package migrations

import "embed"

//go:embed mysql/*.sql clickhouse/*.sql
var FS embed.FS
