// Package persistence provides a SQLite archive of finished simulation runs.
// Runs are exported for plotting and reporting; nothing is loaded back into
// a live market.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/market-sim/internal/economy"
	"github.com/talgya/market-sim/internal/engine"
)

// DB wraps a SQLite connection for run archiving.
type DB struct {
	conn *sqlx.DB
}

// Run is one archived run's metadata.
type Run struct {
	ID        string    `db:"id"`
	Strategy  string    `db:"strategy"`
	Seed      int64     `db:"seed"`
	Days      int       `db:"days"`
	Survivors int       `db:"survivors"`
	Deaths    int       `db:"deaths"`
	CreatedAt time.Time `db:"created_at"`
}

// RosterRow is one archived agent.
type RosterRow struct {
	AgentID       string `db:"agent_id"`
	Role          string `db:"role"`
	Alive         bool   `db:"alive"`
	Reason        string `db:"reason"`
	DiedOnDay     int    `db:"died_on_day"`
	InventoryJSON string `db:"inventory_json"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		seed INTEGER NOT NULL,
		days INTEGER NOT NULL,
		survivors INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prices (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		commodity TEXT NOT NULL,
		price REAL NOT NULL,
		PRIMARY KEY (run_id, day, commodity)
	);

	CREATE TABLE IF NOT EXISTS wealth (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		wealth REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS roster (
		run_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		role TEXT NOT NULL,
		alive INTEGER NOT NULL,
		reason TEXT NOT NULL,
		died_on_day INTEGER NOT NULL,
		inventory_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stats (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		stats_json TEXT NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_wealth_run_day ON wealth(run_id, day);
	CREATE INDEX IF NOT EXISTS idx_roster_run ON roster(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun archives a market's outputs in one transaction and returns the new run id.
func (db *DB) SaveRun(ctx context.Context, m *engine.Market, seed int64) (string, error) {
	runID := uuid.NewString()
	roster := m.Roster()

	slog.Info("archiving run", "run", runID, "days", m.Day, "agents", len(roster))

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs
		(id, strategy, seed, days, survivors, deaths, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, m.Strategy.Name(), seed, m.Day, len(m.Agents), len(m.Dead), time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	priceStmt, err := tx.PreparexContext(ctx, "INSERT INTO prices (run_id, day, commodity, price) VALUES (?, ?, ?, ?)")
	if err != nil {
		return "", err
	}
	defer priceStmt.Close()

	for _, c := range economy.Commodities {
		for day, p := range m.PriceHistory(c) {
			if _, err := priceStmt.ExecContext(ctx, runID, day, c.String(), p); err != nil {
				return "", fmt.Errorf("insert price %s day %d: %w", c, day, err)
			}
		}
	}

	wealthStmt, err := tx.PreparexContext(ctx, "INSERT INTO wealth (run_id, day, agent_id, wealth) VALUES (?, ?, ?, ?)")
	if err != nil {
		return "", err
	}
	defer wealthStmt.Close()

	for _, snap := range m.WealthSeries() {
		for id, w := range snap.Wealth {
			if _, err := wealthStmt.ExecContext(ctx, runID, snap.Day, id.String(), w); err != nil {
				return "", fmt.Errorf("insert wealth day %d: %w", snap.Day, err)
			}
		}
	}

	for _, r := range roster {
		invJSON, _ := json.Marshal(r.Inventory.Map())
		alive := 0
		if r.Alive {
			alive = 1
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO roster
			(run_id, agent_id, role, alive, reason, died_on_day, inventory_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, r.ID.String(), r.Role.String(), alive, r.Reason, r.DiedOnDay, string(invJSON),
		); err != nil {
			return "", fmt.Errorf("insert roster %s: %w", r.ID, err)
		}
	}

	for _, ds := range m.Stats {
		statsJSON, err := json.Marshal(ds)
		if err != nil {
			return "", fmt.Errorf("marshal stats day %d: %w", ds.Day, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO stats (run_id, day, stats_json) VALUES (?, ?, ?)",
			runID, ds.Day, string(statsJSON),
		); err != nil {
			return "", fmt.Errorf("insert stats day %d: %w", ds.Day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("run archived", "run", runID)
	return runID, nil
}

// Runs returns archived runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	var runs []Run
	err := db.conn.SelectContext(ctx, &runs,
		"SELECT id, strategy, seed, days, survivors, deaths, created_at FROM runs ORDER BY created_at DESC")
	return runs, err
}

// PriceHistory returns a run's price history keyed by commodity name.
func (db *DB) PriceHistory(ctx context.Context, runID string) (map[string][]float64, error) {
	var rows []struct {
		Day       int     `db:"day"`
		Commodity string  `db:"commodity"`
		Price     float64 `db:"price"`
	}
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT day, commodity, price FROM prices WHERE run_id = ? ORDER BY commodity, day", runID,
	); err != nil {
		return nil, err
	}

	out := make(map[string][]float64, economy.NumCommodities)
	for _, r := range rows {
		out[r.Commodity] = append(out[r.Commodity], r.Price)
	}
	return out, nil
}

// Roster returns a run's archived agents.
func (db *DB) Roster(ctx context.Context, runID string) ([]RosterRow, error) {
	var rows []RosterRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT agent_id, role, alive, reason, died_on_day, inventory_json
		FROM roster WHERE run_id = ? ORDER BY rowid`, runID)
	return rows, err
}

// DayStats returns a run's per-day statistics, day 0 first.
func (db *DB) DayStats(ctx context.Context, runID string) ([]engine.DayStats, error) {
	var raw []string
	if err := db.conn.SelectContext(ctx, &raw,
		"SELECT stats_json FROM stats WHERE run_id = ? ORDER BY day", runID,
	); err != nil {
		return nil, err
	}
	out := make([]engine.DayStats, len(raw))
	for i, s := range raw {
		if err := json.Unmarshal([]byte(s), &out[i]); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
	}
	return out, nil
}
