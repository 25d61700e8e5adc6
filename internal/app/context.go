package app

import (
	"database/sql"

	"homeward/internal/config"
	"homeward/internal/db"
	"homeward/internal/engine"
	"homeward/internal/migrate"
)

// Open prepares a workspace: opens the database, applies migrations, and
// loads homeward.yml (falling back to defaults when the file is absent).
func Open(workspace string) (*sql.DB, *config.Config, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if cfg == nil {
		cfg = config.Default("homeward")
	}
	return conn, cfg, nil
}

// NewEngine opens the workspace and wires an engine over it.
func NewEngine(workspace string) (engine.Engine, error) {
	conn, cfg, err := Open(workspace)
	if err != nil {
		return engine.Engine{}, err
	}
	return engine.New(conn, cfg), nil
}
