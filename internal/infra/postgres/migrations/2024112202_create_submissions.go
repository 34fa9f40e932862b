package migrations

import _ "embed"

//go:embed 2024112202_create_submissions.up.sql
var createSubmissionsSQL string

func init() {
	Migrations.MustRegister(execSQL(createSubmissionsSQL), execSQL(`DROP TABLE IF EXISTS submissions`))
}
