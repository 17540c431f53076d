package storage

import (
	"fmt"
	"time"
)

const (
	// SightingAdded records a peer becoming reachable.
	SightingAdded = "added"
	// SightingRemoved records a peer disappearing.
	SightingRemoved = "removed"
	// SightingRegistered records the local advertisement being accepted.
	SightingRegistered = "registered"
)

// KnownPeer is a journal row for a peer seen on the network at some point.
type KnownPeer struct {
	ServiceName string
	Username    string
	Hostname    string
	Address     string
	Port        int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Sighting is one journaled discovery event.
type Sighting struct {
	ID          int64
	ServiceName string
	Event       string
	Detail      string
	Timestamp   time.Time
}

// RecordAdded upserts the peer row and journals an added sighting.
func (s *Store) RecordAdded(serviceName, username, hostname, address string, port int) error {
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin record added: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.Exec(`
INSERT INTO peers (service_name, username, hostname, address, port, first_seen, last_seen)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(service_name) DO UPDATE SET
  username  = excluded.username,
  hostname  = excluded.hostname,
  address   = excluded.address,
  port      = excluded.port,
  last_seen = excluded.last_seen;
`, serviceName, username, hostname, address, port, now, now)
	if err != nil {
		return fmt.Errorf("upsert peer %q: %w", serviceName, err)
	}

	detail := fmt.Sprintf("%s:%d", address, port)
	if _, err := tx.Exec(
		`INSERT INTO sightings (service_name, event, detail, timestamp) VALUES (?, ?, ?, ?);`,
		serviceName, SightingAdded, detail, now,
	); err != nil {
		return fmt.Errorf("journal added sighting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record added: %w", err)
	}
	return nil
}

// RecordRemoved updates the peer's last_seen and journals a removed sighting.
func (s *Store) RecordRemoved(serviceName, username string) error {
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin record removed: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(
		`UPDATE peers SET last_seen = ? WHERE service_name = ?;`,
		now, serviceName,
	); err != nil {
		return fmt.Errorf("update peer %q: %w", serviceName, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO sightings (service_name, event, detail, timestamp) VALUES (?, ?, ?, ?);`,
		serviceName, SightingRemoved, username, now,
	); err != nil {
		return fmt.Errorf("journal removed sighting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record removed: %w", err)
	}
	return nil
}

// RecordRegistered journals acceptance of the local advertisement.
func (s *Store) RecordRegistered(acceptedName string) error {
	if _, err := s.db.Exec(
		`INSERT INTO sightings (service_name, event, detail, timestamp) VALUES (?, ?, '', ?);`,
		acceptedName, SightingRegistered, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("journal registration: %w", err)
	}
	return nil
}

// KnownPeers returns every journaled peer, most recently seen first.
func (s *Store) KnownPeers() ([]KnownPeer, error) {
	rows, err := s.db.Query(`
SELECT service_name, username, hostname, address, port, first_seen, last_seen
FROM peers
ORDER BY last_seen DESC, service_name;
`)
	if err != nil {
		return nil, fmt.Errorf("query known peers: %w", err)
	}
	defer rows.Close()

	var out []KnownPeer
	for rows.Next() {
		var (
			peer                KnownPeer
			firstSeen, lastSeen int64
		)
		if err := rows.Scan(&peer.ServiceName, &peer.Username, &peer.Hostname,
			&peer.Address, &peer.Port, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan known peer: %w", err)
		}
		peer.FirstSeen = time.Unix(firstSeen, 0)
		peer.LastSeen = time.Unix(lastSeen, 0)
		out = append(out, peer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known peers: %w", err)
	}
	return out, nil
}

// RecentSightings returns up to limit sightings, newest first.
func (s *Store) RecentSightings(limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
SELECT id, service_name, event, detail, timestamp
FROM sightings
ORDER BY timestamp DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sightings: %w", err)
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var (
			sighting Sighting
			ts       int64
		)
		if err := rows.Scan(&sighting.ID, &sighting.ServiceName, &sighting.Event,
			&sighting.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		sighting.Timestamp = time.Unix(ts, 0)
		out = append(out, sighting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sightings: %w", err)
	}
	return out, nil
}

// PruneSightings deletes journal entries older than the retention window
// and returns how many were removed.
func (s *Store) PruneSightings(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()

	result, err := s.db.Exec(`DELETE FROM sightings WHERE timestamp < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune sightings: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sightings rows affected: %w", err)
	}
	return removed, nil
}
