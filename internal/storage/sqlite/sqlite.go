package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/storage"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/metrics"
)

// SQLiteStorage реализует интерфейс Storage для SQLite
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// Option настраивает SQLiteStorage
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	now         func() time.Time
}

// WithBusyTimeout задает ожидание блокировки базы
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.busyTimeout = d
	}
}

// WithNow задает источник времени для created_at/updated_at
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New создает новое подключение к SQLite базе данных
func New(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	o := options{busyTimeout: 5 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Одно соединение: SQLite допускает одного писателя, а :memory:
	// живет ровно столько, сколько соединение
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{db: db, now: o.now}

	if err := s.migrate(o.busyTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// migrate выполняет миграции базы данных
func (s *SQLiteStorage) migrate(busyTimeout time.Duration) error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
		fmt.Sprintf(`PRAGMA busy_timeout=%d`, busyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'scheduled',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(date, time)
		)`,
		`CREATE TABLE IF NOT EXISTS queue_entries (
			position INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			appointment_id TEXT NOT NULL,
			appointment_key TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			arrived_at DATETIME NOT NULL,
			FOREIGN KEY(appointment_id) REFERENCES appointments(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			appointment_key TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			remind_at DATETIME NOT NULL,
			sent INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_sent ON reminders(sent)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close закрывает подключение к базе данных
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет подключение к базе данных
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const appointmentColumns = `id, date, time, customer_name, customer_phone, notes, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	a := &models.Appointment{}
	err := row.Scan(&a.ID, &a.Date, &a.Time, &a.CustomerName, &a.CustomerPhone,
		&a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func record(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDatabaseOperation(operation, status)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func slotTaken(date calendar.CalendarDate, t calendar.TimeSlot) error {
	return errors.ErrSlotTaken.WithContext(map[string]interface{}{
		"date": string(date),
		"time": string(t),
	})
}

func notFound(date calendar.CalendarDate, t calendar.TimeSlot) error {
	return errors.ErrAppointmentNotFound.WithContext(map[string]interface{}{
		"key": models.AppointmentKey(date, t),
	})
}

// CreateAppointment сохраняет запись. Занятый слот дает ErrSlotTaken.
func (s *SQLiteStorage) CreateAppointment(ctx context.Context, a *models.Appointment) (err error) {
	defer func() { record("create_appointment", err) }()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.StatusScheduled
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `INSERT INTO appointments (` + appointmentColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query, a.ID, string(a.Date), string(a.Time), a.CustomerName, a.CustomerPhone,
		a.Notes, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return slotTaken(a.Date, a.Time)
		}
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to create appointment: %w", err))
	}

	return nil
}

// GetAppointment получает запись по дате и времени
func (s *SQLiteStorage) GetAppointment(ctx context.Context, date calendar.CalendarDate, t calendar.TimeSlot) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE date = ? AND time = ?`

	a, err := scanAppointment(s.db.QueryRowContext(ctx, query, string(date), string(t)))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, notFound(date, t)
		}
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get appointment: %w", err))
	}

	return a, nil
}

// OccupiedTimes возвращает занятые слоты даты, включая пришедших клиентов
func (s *SQLiteStorage) OccupiedTimes(ctx context.Context, date calendar.CalendarDate) (slots []calendar.TimeSlot, err error) {
	defer func() { record("occupied_times", err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT time FROM appointments WHERE date = ? ORDER BY time`, string(date))
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get occupied times: %w", err))
	}
	defer rows.Close()

	slots = []calendar.TimeSlot{}
	for rows.Next() {
		var t calendar.TimeSlot
		if err := rows.Scan(&t); err != nil {
			return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to scan occupied time: %w", err))
		}
		slots = append(slots, t)
	}

	return slots, rows.Err()
}

// ListAppointments возвращает ожидаемые записи в хронологическом порядке
func (s *SQLiteStorage) ListAppointments(ctx context.Context) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
			  WHERE status = ? ORDER BY date, time`

	rows, err := s.db.QueryContext(ctx, query, string(models.StatusScheduled))
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to list appointments: %w", err))
	}
	defer rows.Close()

	var appointments []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to scan appointment: %w", err))
		}
		appointments = append(appointments, a)
	}

	return appointments, rows.Err()
}

// CancelAppointment удаляет ожидаемую запись, освобождает слот и
// удаляет напоминания о ней
func (s *SQLiteStorage) CancelAppointment(ctx context.Context, date calendar.CalendarDate, t calendar.TimeSlot) (err error) {
	defer func() { record("cancel_appointment", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM appointments WHERE date = ? AND time = ? AND status = ?`,
		string(date), string(t), string(models.StatusScheduled))
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to cancel appointment: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to get affected rows: %w", err))
	}

	if rowsAffected == 0 {
		return notFound(date, t)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reminders WHERE appointment_key = ?`, models.AppointmentKey(date, t)); err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to delete reminders: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to commit cancel: %w", err))
	}

	return nil
}

// MoveAppointment переносит запись на другой слот вместе с ее
// неотправленными напоминаниями, сохраняя их отступ от начала. Если
// новый слот занят, запись остается на прежнем месте и возвращается
// ErrSlotTaken.
func (s *SQLiteStorage) MoveAppointment(ctx context.Context, fromDate calendar.CalendarDate, fromTime calendar.TimeSlot, toDate calendar.CalendarDate, toTime calendar.TimeSlot) (moved *models.Appointment, err error) {
	defer func() { record("move_appointment", err) }()

	from, err := fromTime.At(fromDate, time.Local)
	if err != nil {
		return nil, errors.ErrInvalidDate.WithError(err)
	}
	to, err := toTime.At(toDate, time.Local)
	if err != nil {
		return nil, errors.ErrInvalidDate.WithError(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE appointments SET date = ?, time = ?, updated_at = ?
		 WHERE date = ? AND time = ? AND status = ?`,
		string(toDate), string(toTime), s.now(), string(fromDate), string(fromTime), string(models.StatusScheduled))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, slotTaken(toDate, toTime)
		}
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to move appointment: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get affected rows: %w", err))
	}
	if rowsAffected == 0 {
		return nil, notFound(fromDate, fromTime)
	}

	pending, err := pendingReminders(ctx, tx, models.AppointmentKey(fromDate, fromTime))
	if err != nil {
		return nil, err
	}
	shift := to.Sub(from)
	newKey := models.AppointmentKey(toDate, toTime)
	for _, r := range pending {
		if _, err := tx.ExecContext(ctx,
			`UPDATE reminders SET appointment_key = ?, remind_at = ? WHERE id = ?`,
			newKey, r.RemindAt.Add(shift), r.ID); err != nil {
			return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to move reminder: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to commit move: %w", err))
	}

	return s.GetAppointment(ctx, toDate, toTime)
}

// DeleteAppointmentsBefore удаляет записи с датой раньше указанной
func (s *SQLiteStorage) DeleteAppointmentsBefore(ctx context.Context, date calendar.CalendarDate) (n int64, err error) {
	defer func() { record("delete_appointments_before", err) }()

	result, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE date < ?`, string(date))
	if err != nil {
		return 0, errors.ErrDatabase.WithError(fmt.Errorf("failed to delete old appointments: %w", err))
	}

	n, err = result.RowsAffected()
	if err != nil {
		return 0, errors.ErrDatabase.WithError(fmt.Errorf("failed to get affected rows: %w", err))
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE substr(appointment_key, 1, 10) < ?`, string(date)); err != nil {
		return n, errors.ErrDatabase.WithError(fmt.Errorf("failed to delete old reminders: %w", err))
	}

	return n, nil
}

// CheckIn переводит ожидаемую запись в очередь обслуживания
func (s *SQLiteStorage) CheckIn(ctx context.Context, date calendar.CalendarDate, t calendar.TimeSlot) (entry *models.QueueEntry, err error) {
	defer func() { record("check_in", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE date = ? AND time = ? AND status = ?`
	a, err := scanAppointment(tx.QueryRowContext(ctx, query, string(date), string(t), string(models.StatusScheduled)))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, notFound(date, t)
		}
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get appointment: %w", err))
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		string(models.StatusCheckedIn), now, a.ID); err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to update appointment status: %w", err))
	}

	entry = &models.QueueEntry{
		ID:             uuid.NewString(),
		AppointmentID:  a.ID,
		AppointmentKey: a.Key(),
		CustomerName:   a.CustomerName,
		CustomerPhone:  a.CustomerPhone,
		ArrivedAt:      now,
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO queue_entries (id, appointment_id, appointment_key, customer_name, customer_phone, arrived_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AppointmentID, entry.AppointmentKey, entry.CustomerName, entry.CustomerPhone, entry.ArrivedAt)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to enqueue customer: %w", err))
	}

	if entry.Position, err = result.LastInsertId(); err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get queue position: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to commit check-in: %w", err))
	}

	return entry, nil
}

const queueColumns = `position, id, appointment_id, appointment_key, customer_name, customer_phone, arrived_at`

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	e := &models.QueueEntry{}
	if err := row.Scan(&e.Position, &e.ID, &e.AppointmentID, &e.AppointmentKey,
		&e.CustomerName, &e.CustomerPhone, &e.ArrivedAt); err != nil {
		return nil, err
	}
	return e, nil
}

// ListQueue возвращает очередь в порядке прихода
func (s *SQLiteStorage) ListQueue(ctx context.Context) ([]*models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+queueColumns+` FROM queue_entries ORDER BY position`)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to list queue: %w", err))
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to scan queue entry: %w", err))
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// DequeueNext извлекает первого клиента очереди и помечает запись обслуженной
func (s *SQLiteStorage) DequeueNext(ctx context.Context) (entry *models.QueueEntry, err error) {
	defer func() { record("dequeue_next", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	entry, err = scanQueueEntry(tx.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM queue_entries ORDER BY position LIMIT 1`))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrQueueEmpty
		}
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get queue head: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_entries WHERE position = ?`, entry.Position); err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to dequeue: %w", err))
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		string(models.StatusServed), s.now(), entry.AppointmentID); err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to mark appointment served: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to commit dequeue: %w", err))
	}

	return entry, nil
}

// SaveReminder сохраняет напоминание
func (s *SQLiteStorage) SaveReminder(ctx context.Context, r *models.Reminder) (err error) {
	defer func() { record("save_reminder", err) }()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = s.now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, appointment_key, chat_id, remind_at, sent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.AppointmentKey, r.ChatID, r.RemindAt, r.Sent, r.CreatedAt)
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to save reminder: %w", err))
	}

	return nil
}

const reminderColumns = `id, appointment_key, chat_id, remind_at, sent, created_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func queryReminders(ctx context.Context, q queryer, query string, args ...interface{}) ([]*models.Reminder, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get reminders: %w", err))
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		r := &models.Reminder{}
		if err := rows.Scan(&r.ID, &r.AppointmentKey, &r.ChatID, &r.RemindAt, &r.Sent, &r.CreatedAt); err != nil {
			return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to scan reminder: %w", err))
		}
		reminders = append(reminders, r)
	}

	return reminders, rows.Err()
}

func pendingReminders(ctx context.Context, q queryer, key string) ([]*models.Reminder, error) {
	return queryReminders(ctx, q,
		`SELECT `+reminderColumns+` FROM reminders WHERE appointment_key = ? AND sent = 0 ORDER BY remind_at`, key)
}

// GetPendingReminders возвращает неотправленные напоминания по времени
func (s *SQLiteStorage) GetPendingReminders(ctx context.Context) ([]*models.Reminder, error) {
	return queryReminders(ctx, s.db,
		`SELECT `+reminderColumns+` FROM reminders WHERE sent = 0 ORDER BY remind_at`)
}

// GetAppointmentReminders возвращает неотправленные напоминания записи
func (s *SQLiteStorage) GetAppointmentReminders(ctx context.Context, key string) ([]*models.Reminder, error) {
	return pendingReminders(ctx, s.db, key)
}

// MarkReminderSent помечает напоминание отправленным
func (s *SQLiteStorage) MarkReminderSent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET sent = 1 WHERE id = ?`, id)
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to mark reminder as sent: %w", err))
	}
	return nil
}
