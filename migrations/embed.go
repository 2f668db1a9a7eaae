// Package migrations embeds the SQL schema applied on boot.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
