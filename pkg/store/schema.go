package store

// Schema statements are idempotent so `discord-watch init` can be re-run and
// serve can apply them at startup without coordination.
const (
	createApplicationsTable = `CREATE TABLE IF NOT EXISTS applications (
	app_id   TEXT PRIMARY KEY,
	bot_id   TEXT NOT NULL,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	createGuildCountsTable = `CREATE TABLE IF NOT EXISTS guild_counts (
	id          BIGSERIAL PRIMARY KEY,
	bot_id      TEXT NOT NULL,
	guild_count BIGINT NOT NULL,
	counted_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	createGuildCountsIndex = `CREATE INDEX IF NOT EXISTS guild_counts_bot_id_counted_at_idx
	ON guild_counts (bot_id, counted_at DESC)`
)

// schemaStatements returns the DDL in apply order.
func schemaStatements() []string {
	return []string{
		createApplicationsTable,
		createGuildCountsTable,
		createGuildCountsIndex,
	}
}
