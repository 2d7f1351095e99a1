package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"telegram-reminder-bot/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DB struct{ *sql.DB }

func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// one connection: writes are serialized and the scheduler never sees a torn record
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return err
	}
	_, err = p.Up(context.Background())
	return err
}

// ---------- users -----------------------------------------------------------

// EnsureUser registers the chat on first contact.
func (d *DB) EnsureUser(ctx context.Context, chatID int64) error {
	return ensureUser(ctx, d.DB, chatID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureUser(ctx context.Context, e execer, chatID int64) error {
	_, err := e.ExecContext(ctx, `
        INSERT INTO users (chat_id, created_at) VALUES (?, ?)
        ON CONFLICT(chat_id) DO NOTHING`, chatID, time.Now().Unix())
	return err
}

// ClearUser removes every reminder and the pending draft of a chat.
func (d *DB) ClearUser(ctx context.Context, chatID int64) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, tbl := range []string{"reminders", "drafts"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE chat_id = ?", tbl),
			chatID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---------- reminders -------------------------------------------------------

const reminderColumns = `id, chat_id, kind, time, date, note, created_at, last_fired`

// AppendReminder stores r and returns it with ID and CreatedAt filled in.
// Identical reminders are stored as separate rows.
func (d *DB) AppendReminder(ctx context.Context, r models.Reminder) (models.Reminder, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return r, err
	}
	defer tx.Rollback()

	r, err = appendReminder(ctx, tx, r)
	if err != nil {
		return r, err
	}
	return r, tx.Commit()
}

func appendReminder(ctx context.Context, tx *sql.Tx, r models.Reminder) (models.Reminder, error) {
	if !r.Valid() {
		return r, fmt.Errorf("invalid reminder: kind=%q time=%q date=%q", r.Kind, r.Time, r.Date)
	}
	if err := ensureUser(ctx, tx, r.ChatID); err != nil {
		return r, err
	}
	r.CreatedAt = time.Now().Unix()
	res, err := tx.ExecContext(ctx, `
        INSERT INTO reminders (chat_id, kind, time, date, note, created_at)
        VALUES (?,?,?,?,?,?)`,
		r.ChatID, r.Kind, r.Time, r.Date, r.Note, r.CreatedAt)
	if err != nil {
		return r, fmt.Errorf("insert reminder: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return r, err
}

// ListReminders returns the reminders of a chat grouped by kind. One-off
// reminders that already fired are archived and left out.
func (d *DB) ListReminders(ctx context.Context, chatID int64) (models.UserReminders, error) {
	var res models.UserReminders
	rows, err := d.QueryContext(ctx, `
        SELECT `+reminderColumns+`
        FROM reminders
        WHERE chat_id = ? AND (kind = 'daily' OR last_fired = '')
        ORDER BY id`, chatID)
	if err != nil {
		return res, err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return res, err
		}
		if r.Kind == models.KindOneOff {
			res.OneOff = append(res.OneOff, r)
		} else {
			res.Daily = append(res.Daily, r)
		}
	}
	return res, rows.Err()
}

// DeleteDaily removes the daily reminders of chatID set at hm.
func (d *DB) DeleteDaily(ctx context.Context, chatID int64, hm string) (bool, error) {
	res, err := d.ExecContext(ctx, `
        DELETE FROM reminders WHERE chat_id = ? AND kind = 'daily' AND time = ?`,
		chatID, hm)
	return affected(res, err)
}

// DeleteOneOff removes the one-off reminders of chatID set at date and hm.
func (d *DB) DeleteOneOff(ctx context.Context, chatID int64, date, hm string) (bool, error) {
	res, err := d.ExecContext(ctx, `
        DELETE FROM reminders WHERE chat_id = ? AND kind = 'one_off' AND date = ? AND time = ?`,
		chatID, date, hm)
	return affected(res, err)
}

// DueReminders returns reminders to deliver at hm on day: every daily reminder
// set at hm and the not yet fired one-offs for that day.
func (d *DB) DueReminders(ctx context.Context, day, hm string) ([]models.Reminder, error) {
	rows, err := d.QueryContext(ctx, `
        SELECT `+reminderColumns+`
        FROM reminders
        WHERE time = ? AND (kind = 'daily' OR (date = ? AND last_fired = ''))
        ORDER BY chat_id, id`, hm, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// ClaimDelivery marks reminder id as delivered for slot ("YYYY-MM-DD HH:MM").
// It reports false when the slot was already claimed, so a reminder is sent
// at most once per slot even if ticks overlap.
func (d *DB) ClaimDelivery(ctx context.Context, id int64, slot string) (bool, error) {
	res, err := d.ExecContext(ctx, `
        UPDATE reminders SET last_fired = ? WHERE id = ? AND last_fired <> ?`,
		slot, id, slot)
	return affected(res, err)
}

// ReleaseDelivery undoes a claim after a failed send.
func (d *DB) ReleaseDelivery(ctx context.Context, id int64, slot, prev string) error {
	_, err := d.ExecContext(ctx, `
        UPDATE reminders SET last_fired = ? WHERE id = ? AND last_fired = ?`,
		prev, id, slot)
	return err
}

// ---------- drafts (dialogue state) ----------------------------------------

// GetDraft returns the pending dialogue of chatID, or nil when the chat is idle.
func (d *DB) GetDraft(ctx context.Context, chatID int64) (*models.Draft, error) {
	var (
		dr      models.Draft
		updated int64
	)
	err := d.QueryRowContext(ctx, `
        SELECT chat_id, phase, note, time, date, recurrence, retry_count, updated_at
        FROM drafts WHERE chat_id = ?`, chatID,
	).Scan(&dr.ChatID, &dr.Phase, &dr.Note, &dr.Time, &dr.Date, &dr.Recurrence, &dr.RetryCount, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dr.UpdatedAt = time.Unix(updated, 0)
	return &dr, nil
}

// SaveDraft upserts the pending dialogue of a chat.
func (d *DB) SaveDraft(ctx context.Context, dr models.Draft) error {
	if dr.Phase == models.PhaseIdle {
		return errors.New("idle draft cannot be saved")
	}
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureUser(ctx, tx, dr.ChatID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO drafts (chat_id, phase, note, time, date, recurrence, retry_count, updated_at)
        VALUES (?,?,?,?,?,?,?,?)
        ON CONFLICT(chat_id) DO UPDATE SET phase=excluded.phase,
            note=excluded.note,
            time=excluded.time,
            date=excluded.date,
            recurrence=excluded.recurrence,
            retry_count=excluded.retry_count,
            updated_at=excluded.updated_at
    `, dr.ChatID, dr.Phase, dr.Note, dr.Time, dr.Date, dr.Recurrence, dr.RetryCount, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearDraft returns the chat to idle.
func (d *DB) ClearDraft(ctx context.Context, chatID int64) error {
	_, err := d.ExecContext(ctx, `DELETE FROM drafts WHERE chat_id = ?`, chatID)
	return err
}

// CommitDraft stores r and drops the chat's draft in one transaction.
func (d *DB) CommitDraft(ctx context.Context, r models.Reminder) (models.Reminder, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return r, err
	}
	defer tx.Rollback()

	r, err = appendReminder(ctx, tx, r)
	if err != nil {
		return r, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE chat_id = ?`, r.ChatID); err != nil {
		return r, err
	}
	return r, tx.Commit()
}

// ---------- helpers ---------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(s scanner) (models.Reminder, error) {
	var r models.Reminder
	err := s.Scan(&r.ID, &r.ChatID, &r.Kind, &r.Time, &r.Date, &r.Note, &r.CreatedAt, &r.LastFired)
	return r, err
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
