package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/mattn/go-sqlite3"

	"prodmon/kvstore"
)

// SnapshotKey is the key-value slot holding the serialized session
// database. The whole in-memory database is written back to this slot
// after every mutation and restored from it at startup.
const SnapshotKey = "production_monitoring_db"

// DB is the session store substrate: a single-connection in-memory
// SQLite database persisted wholesale into the key-value store. A
// crash between a mutation and its snapshot loses that one mutation
// but never corrupts the previously-serialized image.
type DB struct {
	Session *sql.DB
	kv      *kvstore.Store
}

// Initialize opens the in-memory database and restores the last
// snapshot from the key-value store. A nil kv leaves the database
// memory-only: drafts and snapshots degrade, nothing crashes.
func Initialize(kv *kvstore.Store) (*DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// A second connection would see a different, empty :memory: database.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{Session: conn, kv: kv}

	if kv != nil {
		data, found, err := kv.Get(SnapshotKey)
		if err != nil {
			log.Printf("Warning: failed to read database snapshot: %v", err)
		} else if found {
			if err := db.restore(data); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to restore database snapshot: %w", err)
			}
			log.Println("Loaded existing session database from snapshot")
		} else {
			log.Println("Created new session database")
		}
	} else {
		log.Println("Warning: no key-value store, session database is memory-only")
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		log.Printf("Warning: failed to enable foreign keys: %v", err)
	}

	return db, nil
}

// raw runs fn against the underlying driver connection.
func (db *DB) raw(fn func(*sqlite3.SQLiteConn) error) error {
	c, err := db.Session.Conn(context.Background())
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Raw(func(dc interface{}) error {
		sc, ok := dc.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", dc)
		}
		return fn(sc)
	})
}

// Serialize returns the whole database as a byte image.
func (db *DB) Serialize() ([]byte, error) {
	var data []byte
	err := db.raw(func(sc *sqlite3.SQLiteConn) error {
		b, err := sc.Serialize("")
		if err != nil {
			return err
		}
		// The serialized buffer is owned by SQLite; copy it out.
		data = append([]byte(nil), b...)
		return nil
	})
	return data, err
}

func (db *DB) restore(data []byte) error {
	return db.raw(func(sc *sqlite3.SQLiteConn) error {
		return sc.Deserialize(data, "")
	})
}

// Snapshot serializes the database into the key-value slot. Mutating
// operations call this before returning.
func (db *DB) Snapshot() error {
	if db.kv == nil {
		return nil
	}
	data, err := db.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize database: %w", err)
	}
	if err := db.kv.Set(SnapshotKey, data); err != nil {
		return fmt.Errorf("failed to persist database snapshot: %w", err)
	}
	return nil
}

// Restore replaces the database content with the given image and
// snapshots it. Used by database import.
func (db *DB) Restore(data []byte) error {
	if err := db.restore(data); err != nil {
		return fmt.Errorf("failed to deserialize database: %w", err)
	}
	if _, err := db.Session.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		log.Printf("Warning: failed to enable foreign keys: %v", err)
	}
	return db.Snapshot()
}

// DropSnapshot removes the persisted image. Used by database clear.
func (db *DB) DropSnapshot() error {
	if db.kv == nil {
		return nil
	}
	return db.kv.Delete(SnapshotKey)
}

func (db *DB) Close() {
	if db.Session != nil {
		db.Session.Close()
	}
}
