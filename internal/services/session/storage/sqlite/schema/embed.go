// Package schema embeds the session table DDL.
package schema

import "embed"

// FS contains the SQLite schema files for session storage. The {{table}}
// token is replaced with the quoted table name at open time.
//
//go:embed *.sql
var FS embed.FS
