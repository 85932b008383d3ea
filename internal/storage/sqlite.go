// Package storage handles database connections, schema migrations, and query history using SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/gamequery/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// DefaultHistoryLimit caps history listings without an explicit limit.
const DefaultHistoryLimit = 100

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

const recordColumns = `
	id, queried_at, game, ip, port, hostname, country_code, success, error_kind, error,
	server_name, map_name, game_mode, game_version, players, max_players, has_password, ping_ms`

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// InsertRecord stores one query attempt and returns its id.
func (r *Repository) InsertRecord(rec models.QueryRecord) (int64, error) {
	if rec.QueriedAt.IsZero() {
		rec.QueriedAt = time.Now()
	}

	res, err := r.db.Exec(`
	INSERT INTO query_history (
		queried_at, game, ip, port, hostname, country_code, success, error_kind, error,
		server_name, map_name, game_mode, game_version, players, max_players, has_password, ping_ms
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.QueriedAt.UTC(), rec.Game, rec.IP, rec.Port, rec.Hostname, rec.CountryCode,
		rec.Success, rec.ErrorKind, rec.Error,
		rec.ServerName, rec.MapName, rec.GameMode, rec.GameVersion,
		rec.Players, rec.MaxPlayers, rec.HasPassword, rec.PingMs,
	)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// GetHistory lists records matching f, newest first.
func (r *Repository) GetHistory(f models.HistoryFilter) ([]models.QueryRecord, error) {
	query := `SELECT` + recordColumns + ` FROM query_history WHERE 1=1`
	var args []any

	if f.Game != "" {
		query += ` AND game = ?`
		args = append(args, f.Game)
	}
	if f.IP != "" {
		query += ` AND ip = ?`
		args = append(args, f.IP)
	}
	if f.Port > 0 {
		query += ` AND port = ?`
		args = append(args, f.Port)
	}
	if !f.Since.IsZero() {
		query += ` AND queried_at >= ?`
		args = append(args, f.Since.UTC())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query += ` ORDER BY queried_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := []models.QueryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// GetLatest returns the newest successful record of a server, nil when none.
func (r *Repository) GetLatest(game, ip string, port int) (*models.QueryRecord, error) {
	row := r.db.QueryRow(`SELECT`+recordColumns+`
		FROM query_history
		WHERE game = ? AND ip = ? AND port = ? AND success = 1
		ORDER BY queried_at DESC, id DESC
		LIMIT 1`, game, ip, port)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// DeleteOlderThan removes records queried before t.
func (r *Repository) DeleteOlderThan(t time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM query_history WHERE queried_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// DeleteFailed removes failed records. If game is provided (not empty),
// it restricts deletion to that game.
func (r *Repository) DeleteFailed(game string) (int64, error) {
	query := `DELETE FROM query_history WHERE success = 0`
	var args []any

	if game != "" {
		query += ` AND game = ?`
		args = append(args, game)
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// GetServers lists each distinct server present in the history. If game is
// provided (not empty), it restricts the listing to that game.
func (r *Repository) GetServers(game string) ([]models.ServerRef, error) {
	query := `SELECT game, ip, port, MAX(hostname) FROM query_history`
	var args []any

	if game != "" {
		query += ` WHERE game = ?`
		args = append(args, game)
	}
	query += ` GROUP BY game, ip, port ORDER BY game, ip, port`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.ServerRef
	for rows.Next() {
		var s models.ServerRef
		if err := rows.Scan(&s.Game, &s.IP, &s.Port, &s.Hostname); err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}

	return servers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (models.QueryRecord, error) {
	var rec models.QueryRecord
	err := s.Scan(
		&rec.ID, &rec.QueriedAt, &rec.Game, &rec.IP, &rec.Port, &rec.Hostname, &rec.CountryCode,
		&rec.Success, &rec.ErrorKind, &rec.Error,
		&rec.ServerName, &rec.MapName, &rec.GameMode, &rec.GameVersion,
		&rec.Players, &rec.MaxPlayers, &rec.HasPassword, &rec.PingMs,
	)

	return rec, err
}
