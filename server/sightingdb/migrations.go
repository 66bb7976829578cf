package sightingdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE sighting(
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			marker_id INT NOT NULL,
			kind TEXT NOT NULL,
			time INT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			confidence REAL NOT NULL
		);

		CREATE INDEX idx_sighting_marker_time ON sighting (marker_id, time);
	`))

	return migs
}
