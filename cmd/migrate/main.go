package main

import (
	"log"

	"focustimer/backend/internal/config"
	"focustimer/backend/internal/db"
)

func main() {
	cfg := config.Load()
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	migrations, err := db.Migrations(cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("load migrations: %v", err)
	}
	if err := db.RunMigrations(database, migrations); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	log.Println("migrations applied successfully")
}
