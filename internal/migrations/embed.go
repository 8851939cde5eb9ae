package migrations

import "embed"

// FS содержит SQL файлы миграций, вшитые в бинарник.
//
//go:embed *.sql
var FS embed.FS
