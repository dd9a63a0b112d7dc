package database

import (
	"database/sql"
	"time"
)

const selectActions = `
	SELECT id, timestamp, action, path, file_name, keeper, destination,
	       size, rule, reason, error_message
	FROM actions
`

// GetRecentActions returns the N most recent actions
func (d *ActionDB) GetRecentActions(limit int) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// GetActionsByDateRange returns actions within a time range
func (d *ActionDB) GetActionsByDateRange(start, end time.Time) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE timestamp BETWEEN ? AND ?
	ORDER BY timestamp DESC, id DESC
	`, start.UTC(), end.UTC())
}

// GetActionsByAction returns actions filtered by kind
func (d *ActionDB) GetActionsByAction(action string) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`, action)
}

// GetActionsByRule returns actions taken on sets marked by a rule
func (d *ActionDB) GetActionsByRule(rule string) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE rule = ?
	ORDER BY timestamp DESC, id DESC
	`, rule)
}

// GetActionsByPath returns actions matching a LIKE path pattern
func (d *ActionDB) GetActionsByPath(pathPattern string) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern)
}

// GetLargestActions returns the N largest duplicates removed or moved
func (d *ActionDB) GetLargestActions(limit int) ([]ActionRecord, error) {
	return d.queryActions(selectActions+`
	WHERE action IN ('DELETE', 'MOVE')
	ORDER BY size DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetTotalSpaceReclaimed returns bytes removed from the scanned trees in a time range
func (d *ActionDB) GetTotalSpaceReclaimed(start, end time.Time) (int64, error) {
	var total int64
	err := d.db.QueryRow(`
	SELECT COALESCE(SUM(size), 0)
	FROM actions
	WHERE action IN ('DELETE', 'MOVE') AND timestamp BETWEEN ? AND ?
	`, start.UTC(), end.UTC()).Scan(&total)
	return total, err
}

// GetActionCountByAction returns count of actions grouped by kind
func (d *ActionDB) GetActionCountByAction() (map[string]int, error) {
	return d.countBy(`SELECT action, COUNT(*) FROM actions GROUP BY action`)
}

// GetActionCountByRule returns count of removals and moves grouped by rule
func (d *ActionDB) GetActionCountByRule() (map[string]int, error) {
	return d.countBy(`
	SELECT COALESCE(rule, ''), COUNT(*)
	FROM actions
	WHERE action IN ('DELETE', 'MOVE')
	GROUP BY rule
	`)
}

func (d *ActionDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// ActionStats holds aggregated statistics
type ActionStats struct {
	TotalDeleted   int
	TotalMoved     int
	TotalDryRun    int
	TotalSkipped   int
	TotalErrors    int
	SpaceReclaimed int64
	ByRule         map[string]int
	ByAction       map[string]int
	StartDate      time.Time
	EndDate        time.Time
}

// GetActionStats returns statistics for the last days
func (d *ActionDB) GetActionStats(days int) (*ActionStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &ActionStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'MOVE' THEN 1 END),
			COUNT(CASE WHEN action = 'DRY_RUN' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM actions
		WHERE timestamp >= ?
	`, since.UTC()).Scan(&stats.TotalDeleted, &stats.TotalMoved, &stats.TotalDryRun,
		&stats.TotalSkipped, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	stats.SpaceReclaimed, err = d.GetTotalSpaceReclaimed(since, now)
	if err != nil {
		return nil, err
	}
	stats.ByRule, err = d.GetActionCountByRule()
	if err != nil {
		return nil, err
	}
	stats.ByAction, err = d.GetActionCountByAction()
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than specified days
func (d *ActionDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).UTC()

	result, err := d.db.Exec(`DELETE FROM actions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// queryActions executes a query and scans the action rows
func (d *ActionDB) queryActions(query string, args ...interface{}) ([]ActionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var r ActionRecord
		var name, keeper, dest, rule, reason, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Action, &r.Path, &name, &keeper, &dest,
			&r.Size, &rule, &reason, &errMsg,
		)
		if err != nil {
			return nil, err
		}
		r.FileName = name.String
		r.Keeper = keeper.String
		r.Destination = dest.String
		r.Rule = rule.String
		r.Reason = reason.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}

// GetRecentActionsPaginated returns paginated recent actions with total count
func (d *ActionDB) GetRecentActionsPaginated(limit, offset int) ([]ActionRecord, int, error) {
	var totalCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM actions").Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	records, err := d.queryActions(selectActions+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ? OFFSET ?
	`, limit, offset)
	return records, totalCount, err
}
