package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/types"
)

const pruneInterval = 10 * time.Minute

// Entry is the final stats record of one connection, written when it
// disconnects.
type Entry struct {
	ConnectionID   uint64    `json:"connection_id"`
	RemoteAddr     string    `json:"remote_addr"`
	ReliableSent   uint64    `json:"reliable_sent"`
	UnreliableSent uint64    `json:"unreliable_sent"`
	Received       uint64    `json:"received"`
	Dropped        uint64    `json:"dropped"`
	RTTMs          float64   `json:"rtt_ms"`
	Quality        float64   `json:"quality_percent"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
	ClosedAt       time.Time `json:"closed_at"`
}

// FromStats builds an Entry from a connection's final snapshot.
func FromStats(id types.ConnectionID, remote string, s types.ConnectionStats) Entry {
	return Entry{
		ConnectionID:   uint64(id),
		RemoteAddr:     remote,
		ReliableSent:   s.ReliableSent,
		UnreliableSent: s.UnreliableSent,
		Received:       s.Received,
		Dropped:        s.Dropped,
		RTTMs:          float64(s.RTT) / float64(time.Millisecond),
		Quality:        s.Quality,
		UptimeSeconds:  s.Uptime.Seconds(),
		ClosedAt:       time.Now().UTC(),
	}
}

// Store persists connection log entries in sqlite, capped at maxRows
// with background pruning.
type Store struct {
	db        *sql.DB
	maxRows   int
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	log       *logging.Logger
}

func New(dbPath string, maxRows int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(3)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// modernc.org/sqlite requires explicit PRAGMAs (not query-string params)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{
		db:      db,
		maxRows: maxRows,
		stopCh:  make(chan struct{}),
		log:     logging.NewLogger("history"),
	}

	s.prune()

	s.wg.Add(1)
	go s.pruneLoop()

	return s, nil
}

func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if err := s.db.Close(); err != nil {
			s.log.Warn("close failed", logging.Field{Key: "error", Value: err})
		}
	})
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS connection_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		connection_id INTEGER NOT NULL,
		remote_addr TEXT NOT NULL DEFAULT '',
		reliable_sent INTEGER NOT NULL DEFAULT 0,
		unreliable_sent INTEGER NOT NULL DEFAULT 0,
		received INTEGER NOT NULL DEFAULT 0,
		dropped INTEGER NOT NULL DEFAULT 0,
		rtt_ms REAL NOT NULL DEFAULT 0,
		quality REAL NOT NULL DEFAULT 0,
		uptime_seconds REAL NOT NULL DEFAULT 0,
		closed_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_connection_log_closed_at ON connection_log(closed_at)`)
	return err
}

func (s *Store) Record(e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO connection_log
		 (connection_id, remote_addr, reliable_sent, unreliable_sent, received, dropped, rtt_ms, quality, uptime_seconds, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ConnectionID, e.RemoteAddr,
		e.ReliableSent, e.UnreliableSent, e.Received, e.Dropped,
		e.RTTMs, e.Quality, e.UptimeSeconds, e.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert connection log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT connection_id, remote_addr, reliable_sent, unreliable_sent, received, dropped, rtt_ms, quality, uptime_seconds, closed_at
		 FROM connection_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query connection log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ConnectionID, &e.RemoteAddr,
			&e.ReliableSent, &e.UnreliableSent, &e.Received, &e.Dropped,
			&e.RTTMs, &e.Quality, &e.UptimeSeconds, &e.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("scan connection log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM connection_log`).Scan(&n)
	return n, err
}

func (s *Store) pruneLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *Store) prune() {
	res, err := s.db.Exec(
		`DELETE FROM connection_log WHERE id NOT IN
		 (SELECT id FROM connection_log ORDER BY id DESC LIMIT ?)`, s.maxRows)
	if err != nil {
		s.log.Warn("prune failed", logging.Field{Key: "error", Value: err})
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.log.Debug("pruned connection log", logging.Field{Key: "rows", Value: n})
	}
}
