package marker

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS marker (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	region BLOB NOT NULL
)`

// SQLiteStore keeps the region as a single row of an embedded database.
// The row holds the same fixed layout as the other backends.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("marker: empty path")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("marker: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() (State, error) {
	var st State
	var region []byte
	err := s.db.QueryRow(`SELECT region FROM marker WHERE id = 1`).Scan(&region)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := st.UnmarshalBinary(region); err != nil {
		return State{}, err
	}
	return st, nil
}

func (s *SQLiteStore) Save(st State) error {
	b, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO marker (id, region) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET region = excluded.region`, b)
	return err
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM marker WHERE id = 1`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
