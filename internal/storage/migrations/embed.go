package migrations

import "embed"

// PostgresFS holds postgres/*.sql: the registry catalog and watcher progress.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds clickhouse/*.sql: the execution log.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
