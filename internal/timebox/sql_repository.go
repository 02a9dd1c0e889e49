package timebox

import (
	"context"
	"database/sql"
	"fmt"

	"lifelock-backend/internal/db"
)

// SQLRepository stores tasks in the timebox_tasks table, one row per task,
// ordered by their position in the list.
type SQLRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewSQLRepository(conn *sql.DB, dialect db.Dialect) *SQLRepository {
	return &SQLRepository{db: conn, dialect: dialect}
}

func (r *SQLRepository) List(ctx context.Context, key DayKey) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, db.Rebind(r.dialect, `
		SELECT id, title, start_time, end_time, category, completed, description
		FROM timebox_tasks
		WHERE user_id = ? AND task_date = ?
		ORDER BY position
	`), key.UserID, key.Date)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", key, err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.StartTime, &t.EndTime, &t.Category, &t.Completed, &t.Description); err != nil {
			return nil, fmt.Errorf("scan %s: %w", key, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *SQLRepository) Save(ctx context.Context, key DayKey, tasks []Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, db.Rebind(r.dialect,
		`DELETE FROM timebox_tasks WHERE user_id = ? AND task_date = ?`),
		key.UserID, key.Date); err != nil {
		return fmt.Errorf("clear %s: %w", key, err)
	}

	insert := db.Rebind(r.dialect, `
		INSERT INTO timebox_tasks (
			user_id, task_date, position,
			id, title, start_time, end_time, category, completed, description
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i, t := range tasks {
		if _, err := tx.ExecContext(ctx, insert,
			key.UserID, key.Date, i,
			t.ID, t.Title, t.StartTime, t.EndTime, string(t.Category), t.Completed, t.Description,
		); err != nil {
			return fmt.Errorf("insert %s task %s: %w", key, t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
