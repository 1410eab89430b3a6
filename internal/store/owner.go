package store

import (
	"database/sql"
	"fmt"
)

// SelectOwner returns the singleton owner row, or nil if absent.
func SelectOwner(e Execer) (*OwnerRecord, error) {
	row := e.QueryRow(`SELECT pid, started_at, heartbeat_at FROM watcher_owner WHERE id = 1`)
	var rec OwnerRecord
	if err := row.Scan(&rec.PID, &rec.StartedAt, &rec.HeartbeatAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertOwner creates the singleton row for pid. A second insert fails by
// design: id 1 is already taken, and CHECK (id = 1) rules out any other id.
func InsertOwner(e Execer, pid int, now string) error {
	_, err := e.Exec(`INSERT INTO watcher_owner(id, pid, started_at, heartbeat_at) VALUES (1, ?, ?, ?)`, pid, now, now)
	return err
}

// ReplaceOwner overwrites the row unconditionally (used for stale takeover).
func ReplaceOwner(e Execer, pid int, now string) error {
	_, err := e.Exec(`INSERT INTO watcher_owner(id, pid, started_at, heartbeat_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET pid = excluded.pid, started_at = excluded.started_at, heartbeat_at = excluded.heartbeat_at`, pid, now, now)
	return err
}

// TouchOwner updates heartbeat_at only when the row's pid still matches.
func TouchOwner(e Execer, pid int, now string) error {
	res, err := e.Exec(`UPDATE watcher_owner SET heartbeat_at = ? WHERE id = 1 AND pid = ?`, now, pid)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("touch owner: pid %d does not hold the row", pid)
	}
	return nil
}

// DeleteOwner removes the row only if it still belongs to pid.
func DeleteOwner(e Execer, pid int) error {
	_, err := e.Exec(`DELETE FROM watcher_owner WHERE id = 1 AND pid = ?`, pid)
	return err
}
