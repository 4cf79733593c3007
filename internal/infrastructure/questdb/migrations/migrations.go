// Package migrations holds the QuestDB schema of the bar sink.
package migrations

import "embed"

// FS contains the *.up.sql and *.down.sql migrations.
//
//go:embed *.sql
var FS embed.FS
