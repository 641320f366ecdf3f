// Package db embeds the SQL schema applied at startup.
package db

import _ "embed"

//go:embed schema.sql
var Schema string
