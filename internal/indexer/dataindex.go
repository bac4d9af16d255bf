package indexer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// FileItems is everything a single file contributes to a DataIndexer.
type FileItems[T any] struct {
	Path  string
	Hash  uint64
	Items map[string][]T
}

// DataIndexer stores values of any type in SQLite, keyed by string and owned
// by the file they were found in. Replacing a file replaces all of its
// values at once.
type DataIndexer[T any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewDataIndexer opens the database at dbPath. An empty path keeps the data
// in memory.
func NewDataIndexer[T any](dbPath string) (*DataIndexer[T], error) {
	dsn := ":memory:"
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
		dsn = dbPath + "?_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// an in-memory database lives exactly as long as its connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			key TEXT NOT NULL,
			file_path TEXT NOT NULL,
			value BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_key ON entries(key);
		CREATE INDEX IF NOT EXISTS idx_entries_file ON entries(file_path);

		CREATE TABLE IF NOT EXISTS file_states (
			file_path TEXT PRIMARY KEY,
			hash INTEGER NOT NULL
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return &DataIndexer[T]{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// ReplaceFiles drops the previous values of every given file and stores the
// new ones together with the file's content hash, in one transaction.
func (idx *DataIndexer[T]) ReplaceFiles(files []FileItems[T]) error {
	if len(files) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert, err := tx.Prepare("INSERT INTO entries (key, file_path, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	for _, file := range files {
		if _, err := tx.Exec("DELETE FROM entries WHERE file_path = ?", file.Path); err != nil {
			return fmt.Errorf("failed to delete entries of %s: %w", file.Path, err)
		}

		for key, items := range file.Items {
			for _, item := range items {
				data, err := msgpack.Marshal(item)
				if err != nil {
					return fmt.Errorf("failed to marshal item: %w", err)
				}
				if _, err := insert.Exec(key, file.Path, data); err != nil {
					return fmt.Errorf("failed to save item: %w", err)
				}
			}
		}

		_, err := tx.Exec(
			"INSERT INTO file_states (file_path, hash) VALUES (?, ?) ON CONFLICT(file_path) DO UPDATE SET hash = excluded.hash",
			file.Path, int64(file.Hash),
		)
		if err != nil {
			return fmt.Errorf("failed to save file state: %w", err)
		}
	}

	return tx.Commit()
}

// GetValues returns all items stored under key.
func (idx *DataIndexer[T]) GetValues(key string) ([]T, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.queryValues("SELECT value FROM entries WHERE key = ?", key)
}

// GetAllValues returns every stored item.
func (idx *DataIndexer[T]) GetAllValues() ([]T, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.queryValues("SELECT value FROM entries")
}

func (idx *DataIndexer[T]) queryValues(query string, args ...any) ([]T, error) {
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		var item T
		if err := msgpack.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetAllKeys returns the distinct keys.
func (idx *DataIndexer[T]) GetAllKeys() ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.queryStrings("SELECT DISTINCT key FROM entries")
}

// GetAllKeysByPath returns the distinct keys a file contributed.
func (idx *DataIndexer[T]) GetAllKeysByPath(filePath string) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.queryStrings("SELECT DISTINCT key FROM entries WHERE file_path = ?", filePath)
}

func (idx *DataIndexer[T]) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// FileHashes returns the content hash recorded for every stored file.
func (idx *DataIndexer[T]) FileHashes() (map[string]uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query("SELECT file_path, hash FROM file_states")
	if err != nil {
		return nil, fmt.Errorf("failed to query file states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hashes := make(map[string]uint64)
	for rows.Next() {
		var (
			path string
			hash int64
		)
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan file state: %w", err)
		}
		hashes[path] = uint64(hash)
	}

	return hashes, rows.Err()
}

// BatchDeleteByFilePaths deletes the values and the recorded hash of every
// given file.
func (idx *DataIndexer[T]) BatchDeleteByFilePaths(filePaths []string) error {
	if len(filePaths) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, filePath := range filePaths {
		if _, err := tx.Exec("DELETE FROM entries WHERE file_path = ?", filePath); err != nil {
			return fmt.Errorf("failed to delete entries: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM file_states WHERE file_path = ?", filePath); err != nil {
			return fmt.Errorf("failed to delete file state: %w", err)
		}
	}

	return tx.Commit()
}

func (idx *DataIndexer[T]) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, err := idx.db.Exec("DELETE FROM entries; DELETE FROM file_states;"); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	_, err := idx.db.Exec("PRAGMA incremental_vacuum")
	return err
}

// Close closes the database. File databases are optimized and their WAL
// truncated first.
func (idx *DataIndexer[T]) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dbPath != "" {
		_, _ = idx.db.Exec("PRAGMA optimize")
		_, _ = idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}

	return idx.db.Close()
}
