package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campustools/gridcal/internal/timetable"
)

// courseRepo implements CourseRepository.
type courseRepo struct {
	pool *pgxpool.Pool
}

func (r *courseRepo) ReplaceAll(ctx context.Context, courses []timetable.Course) error {
	defer observeDB(ctx, "db.courses.replace_all")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin course replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM courses`); err != nil {
		return fmt.Errorf("clear courses: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range courses {
		batch.Queue(
			`INSERT INTO courses (code, name, section, location) VALUES ($1, $2, $3, $4)`,
			c.Code, c.Name, c.Section, c.Location,
		)
	}
	if err := flushBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("insert courses: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit course replace: %w", err)
	}
	return nil
}

func (r *courseRepo) List(ctx context.Context) ([]timetable.Course, error) {
	defer observeDB(ctx, "db.courses.list")()

	rows, err := r.pool.Query(ctx, `SELECT code, name, section, location FROM courses ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []timetable.Course
	for rows.Next() {
		var c timetable.Course
		if err := rows.Scan(&c.Code, &c.Name, &c.Section, &c.Location); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// eventRepo implements EventRepository.
type eventRepo struct {
	pool *pgxpool.Pool
}

func (r *eventRepo) ReplaceAll(ctx context.Context, events []timetable.ScheduleEvent) error {
	defer observeDB(ctx, "db.events.replace_all")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin event replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_events`); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(
			`INSERT INTO schedule_events
			(id, course_code, course_name, section, location, professor, event_date, slot_start, slot_end, week, day, status, is_cancelled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			e.ID, e.CourseCode, e.CourseName, e.Section, e.Location, e.Professor,
			e.Date, e.Slot.Start, e.Slot.End, e.Week, e.Day, string(e.Status), e.IsCancelled,
		)
	}
	if err := flushBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event replace: %w", err)
	}
	return nil
}

func (r *eventRepo) List(ctx context.Context, filter EventFilter) ([]timetable.ScheduleEvent, error) {
	defer observeDB(ctx, "db.events.list")()

	query, args := buildEventQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []timetable.ScheduleEvent
	for rows.Next() {
		var (
			e      timetable.ScheduleEvent
			status string
		)
		if err := rows.Scan(
			&e.ID, &e.CourseCode, &e.CourseName, &e.Section, &e.Location, &e.Professor,
			&e.Date, &e.Slot.Start, &e.Slot.End, &e.Week, &e.Day, &status, &e.IsCancelled,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Status = timetable.EventStatus(status)
		events = append(events, e)
	}
	return events, rows.Err()
}

// buildEventQuery assembles the filtered listing statement. Kept free of
// pool access so the clause logic is testable on its own.
func buildEventQuery(filter EventFilter) (string, []any) {
	query := `SELECT id, course_code, course_name, section, location, professor, event_date, slot_start, slot_end, week, day, status, is_cancelled FROM schedule_events`

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.From.IsZero() {
		where = append(where, "event_date >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "event_date < "+arg(filter.To))
	}
	if len(filter.Courses) > 0 {
		where = append(where, "course_code = ANY("+arg(filter.Courses)+")")
	}
	if !filter.IncludeCancelled {
		where = append(where, "NOT is_cancelled")
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_date, course_code, slot_start"
	return query, args
}

// subscriberRepo implements SubscriberRepository.
type subscriberRepo struct {
	pool *pgxpool.Pool
}

const subscriberColumns = `id, email, name, calendar_id, courses, feed_token_hash, active, created_at, updated_at`

func (r *subscriberRepo) Create(ctx context.Context, sub Subscriber) (*Subscriber, error) {
	defer observeDB(ctx, "db.subscribers.create")()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Courses == nil {
		sub.Courses = []string{}
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO subscribers (id, email, name, calendar_id, courses, feed_token_hash, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING `+subscriberColumns,
		sub.ID, sub.Email, sub.Name, sub.CalendarID, sub.Courses, sub.FeedTokenHash,
	)
	return scanSubscriber(row)
}

func (r *subscriberRepo) GetByID(ctx context.Context, id uuid.UUID) (*Subscriber, error) {
	defer observeDB(ctx, "db.subscribers.get")()

	row := r.pool.QueryRow(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)
	return scanSubscriber(row)
}

func (r *subscriberRepo) GetByEmail(ctx context.Context, email string) (*Subscriber, error) {
	defer observeDB(ctx, "db.subscribers.get_by_email")()

	row := r.pool.QueryRow(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE lower(email) = lower($1)`, email)
	return scanSubscriber(row)
}

func (r *subscriberRepo) List(ctx context.Context, onlyActive bool) ([]Subscriber, error) {
	defer observeDB(ctx, "db.subscribers.list")()

	query := `SELECT ` + subscriberColumns + ` FROM subscribers`
	if onlyActive {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (r *subscriberRepo) UpdateCourses(ctx context.Context, id uuid.UUID, courses []string) error {
	defer observeDB(ctx, "db.subscribers.update_courses")()

	if courses == nil {
		courses = []string{}
	}
	return r.exec(ctx, `UPDATE subscribers SET courses = $2, updated_at = NOW() WHERE id = $1`, id, courses)
}

func (r *subscriberRepo) SetCalendarID(ctx context.Context, id uuid.UUID, calendarID string) error {
	defer observeDB(ctx, "db.subscribers.set_calendar")()
	return r.exec(ctx, `UPDATE subscribers SET calendar_id = $2, updated_at = NOW() WHERE id = $1`, id, calendarID)
}

func (r *subscriberRepo) SetFeedTokenHash(ctx context.Context, id uuid.UUID, hash string) error {
	defer observeDB(ctx, "db.subscribers.set_feed_token")()
	return r.exec(ctx, `UPDATE subscribers SET feed_token_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *subscriberRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "db.subscribers.deactivate")()
	return r.exec(ctx, `UPDATE subscribers SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
}

// exec runs a single-row mutation and maps "no row touched" to ErrNotFound.
func (r *subscriberRepo) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubscriber(row pgx.Row) (*Subscriber, error) {
	var sub Subscriber
	err := row.Scan(
		&sub.ID, &sub.Email, &sub.Name, &sub.CalendarID, &sub.Courses,
		&sub.FeedTokenHash, &sub.Active, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}
	return &sub, nil
}

// reportRepo implements ReportRepository.
type reportRepo struct {
	pool *pgxpool.Pool
}

func (r *reportRepo) Insert(ctx context.Context, report SyncReport) (*SyncReport, error) {
	defer observeDB(ctx, "db.reports.insert")()

	row := r.pool.QueryRow(ctx,
		`INSERT INTO sync_reports
		(run_id, subscriber_id, kind, created_count, updated_count, deleted_count, failed_count, skipped_count, course_count, event_count, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		report.RunID, report.SubscriberID, report.Kind,
		report.Created, report.Updated, report.Deleted, report.Failed, report.Skipped,
		report.Courses, report.Events, report.Error, report.StartedAt, report.FinishedAt,
	)
	if err := row.Scan(&report.ID); err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	return &report, nil
}

func (r *reportRepo) ListRecent(ctx context.Context, limit int) ([]SyncReport, error) {
	defer observeDB(ctx, "db.reports.list_recent")()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, run_id, subscriber_id, kind, created_count, updated_count, deleted_count, failed_count, skipped_count, course_count, event_count, error, started_at, finished_at
		FROM sync_reports ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []SyncReport
	for rows.Next() {
		var rep SyncReport
		if err := rows.Scan(
			&rep.ID, &rep.RunID, &rep.SubscriberID, &rep.Kind,
			&rep.Created, &rep.Updated, &rep.Deleted, &rep.Failed, &rep.Skipped,
			&rep.Courses, &rep.Events, &rep.Error, &rep.StartedAt, &rep.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// flushBatch sends queued statements and surfaces the first failure.
func flushBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}
