package migrations

import _ "embed"

//go:embed 2024112203_create_leaderboard.up.sql
var createLeaderboardSQL string

func init() {
	Migrations.MustRegister(execSQL(createLeaderboardSQL), execSQL(`DROP TABLE IF EXISTS leaderboard_entries`))
}
