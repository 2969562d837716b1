package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/statuskeep/statusd/internal/domain"
	"github.com/statuskeep/statusd/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store persists services, outcomes and incidents in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the database at path and applies the
// schema. Foreign keys are enabled so outcomes and incidents are
// cascade-deleted with their service.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, multierr.Append(fmt.Errorf("ping db: %w", err), db.Close())
	}
	// The cycle writer and API readers share one connection pool; a single
	// writer keeps SQLite's locking simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, multierr.Append(fmt.Errorf("apply schema: %w", err), db.Close())
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS services (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL,
	check_type TEXT NOT NULL,
	expected_status TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	domains TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS health_checks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service_id INTEGER NOT NULL REFERENCES services(id) ON DELETE CASCADE,
	timestamp TIMESTAMP NOT NULL,
	status TEXT NOT NULL,
	response_time REAL,
	status_code INTEGER,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_health_checks_service_ts
	ON health_checks(service_id, timestamp);

CREATE TABLE IF NOT EXISTS incidents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service_id INTEGER NOT NULL REFERENCES services(id) ON DELETE CASCADE,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP,
	duration INTEGER,
	status TEXT NOT NULL,
	description TEXT
);
CREATE INDEX IF NOT EXISTS idx_incidents_service_started
	ON incidents(service_id, started_at);
`

func (s *Store) Close() error { return s.db.Close() }

// ---- ServiceStore ----

const serviceColumns = `id, name, url, check_type, expected_status, enabled, created_at, domains`

func scanService(row interface{ Scan(...any) error }) (*domain.Service, error) {
	var svc domain.Service
	err := row.Scan(&svc.ID, &svc.Name, &svc.URL, &svc.CheckType, &svc.ExpectedStatus,
		&svc.Enabled, &svc.CreatedAt, &svc.Domains)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *Store) listServices(ctx context.Context, query string, args ...any) ([]domain.Service, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, *svc)
	}
	return out, rows.Err()
}

func (s *Store) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.listServices(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY id`)
}

func (s *Store) ListEnabledServices(ctx context.Context) ([]domain.Service, error) {
	return s.listServices(ctx, `SELECT `+serviceColumns+` FROM services WHERE enabled = 1 ORDER BY id`)
}

func (s *Store) ServiceByURL(ctx context.Context, url string) (*domain.Service, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE url = ?`, url)
	svc, err := scanService(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service by url: %w", err)
	}
	return svc, nil
}

func (s *Store) InsertService(ctx context.Context, svc *domain.Service) error {
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO services (name, url, check_type, expected_status, enabled, created_at, domains)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		svc.Name, svc.URL, svc.CheckType, svc.ExpectedStatus, svc.Enabled, svc.CreatedAt, svc.Domains)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	svc.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateService(ctx context.Context, svc domain.Service) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE services SET name = ?, url = ?, check_type = ?, expected_status = ?, enabled = ?, domains = ?
		 WHERE id = ?`,
		svc.Name, svc.URL, svc.CheckType, svc.ExpectedStatus, svc.Enabled, svc.Domains, svc.ID)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

// ---- OutcomeStore ----

const outcomeColumns = `id, service_id, timestamp, status, response_time, status_code, error_message`

func scanOutcome(row interface{ Scan(...any) error }) (*domain.Outcome, error) {
	var (
		o       domain.Outcome
		latency sql.NullFloat64
		code    sql.NullInt64
		errMsg  sql.NullString
	)
	err := row.Scan(&o.ID, &o.ServiceID, &o.Timestamp, &o.Status, &latency, &code, &errMsg)
	if err != nil {
		return nil, err
	}
	if latency.Valid {
		v := latency.Float64
		o.LatencyMS = &v
	}
	if code.Valid {
		v := int(code.Int64)
		o.Code = &v
	}
	o.Error = errMsg.String
	return &o, nil
}

func (s *Store) LatestOutcome(ctx context.Context, serviceID int64) (*domain.Outcome, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+outcomeColumns+` FROM health_checks
		 WHERE service_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, serviceID)
	o, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest outcome: %w", err)
	}
	return o, nil
}

func (s *Store) OutcomeHistory(ctx context.Context, serviceID int64, since time.Time) ([]domain.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+outcomeColumns+` FROM health_checks
		 WHERE service_id = ? AND timestamp >= ?
		 ORDER BY timestamp DESC, id DESC`, serviceID, since)
	if err != nil {
		return nil, fmt.Errorf("outcome history: %w", err)
	}
	defer rows.Close()

	var out []domain.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Store) CountOutcomes(ctx context.Context, serviceID int64, since time.Time, status domain.Status) (int, error) {
	query := `SELECT COUNT(id) FROM health_checks WHERE service_id = ? AND timestamp >= ?`
	args := []any{serviceID, since}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

func (s *Store) CountNonUpOutcomesBetween(ctx context.Context, serviceID int64, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(id) FROM health_checks
		 WHERE service_id = ? AND timestamp >= ? AND timestamp <= ? AND status != ?`,
		serviceID, from, to, string(domain.StatusUp)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count non-up outcomes: %w", err)
	}
	return n, nil
}

func (s *Store) AvgLatency(ctx context.Context, serviceID int64, since time.Time) (*float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(response_time) FROM health_checks
		 WHERE service_id = ? AND timestamp >= ? AND response_time IS NOT NULL`,
		serviceID, since).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("avg latency: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	v := avg.Float64
	return &v, nil
}

// ---- IncidentStore ----

const incidentColumns = `id, service_id, started_at, ended_at, duration, status, description`

func scanIncident(row interface{ Scan(...any) error }) (*domain.Incident, error) {
	var (
		i        domain.Incident
		endedAt  sql.NullTime
		duration sql.NullInt64
		desc     sql.NullString
	)
	err := row.Scan(&i.ID, &i.ServiceID, &i.StartedAt, &endedAt, &duration, &i.Status, &desc)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		v := endedAt.Time
		i.EndedAt = &v
	}
	if duration.Valid {
		v := int(duration.Int64)
		i.DurationSec = &v
	}
	i.Description = desc.String
	return &i, nil
}

func (s *Store) LatestIncident(ctx context.Context, serviceID int64) (*domain.Incident, error) {
	return latestIncident(ctx, s.db, serviceID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latestIncident(ctx context.Context, q querier, serviceID int64) (*domain.Incident, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents
		 WHERE service_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`, serviceID)
	i, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest incident: %w", err)
	}
	return i, nil
}

func (s *Store) OngoingIncident(ctx context.Context, serviceID int64) (*domain.Incident, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents
		 WHERE service_id = ? AND status = ?
		 ORDER BY started_at DESC, id DESC LIMIT 1`, serviceID, string(domain.IncidentOngoing))
	i, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ongoing incident: %w", err)
	}
	return i, nil
}

func (s *Store) ListIncidents(ctx context.Context, opts repo.ListIncidentsOptions) ([]repo.IncidentWithService, error) {
	query := `SELECT i.id, i.service_id, i.started_at, i.ended_at, i.duration, i.status, i.description, s.name
		 FROM incidents i JOIN services s ON s.id = i.service_id
		 WHERE i.started_at >= ?`
	args := []any{opts.Since}
	if opts.OngoingOnly {
		query += ` AND i.status = ?`
		args = append(args, string(domain.IncidentOngoing))
	}
	query += ` ORDER BY i.started_at DESC, i.id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []repo.IncidentWithService
	for rows.Next() {
		var (
			i        domain.Incident
			endedAt  sql.NullTime
			duration sql.NullInt64
			desc     sql.NullString
			name     string
		)
		if err := rows.Scan(&i.ID, &i.ServiceID, &i.StartedAt, &endedAt, &duration, &i.Status, &desc, &name); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		if endedAt.Valid {
			v := endedAt.Time
			i.EndedAt = &v
		}
		if duration.Valid {
			v := int(duration.Int64)
			i.DurationSec = &v
		}
		i.Description = desc.String
		out = append(out, repo.IncidentWithService{Incident: i, ServiceName: name})
	}
	return out, rows.Err()
}

func (s *Store) ShortIncidentsSince(ctx context.Context, serviceID int64, since time.Time, maxDuration time.Duration) ([]domain.Incident, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents
		 WHERE service_id = ? AND started_at >= ? AND status = ?
		   AND duration IS NOT NULL AND duration < ?`,
		serviceID, since, string(domain.IncidentResolved), int(maxDuration.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("short incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// ---- TxBeginner ----

type Tx struct {
	tx *sql.Tx
}

var _ repo.Tx = (*Tx)(nil)

func (s *Store) Begin(ctx context.Context) (repo.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) LatestIncident(ctx context.Context, serviceID int64) (*domain.Incident, error) {
	return latestIncident(ctx, t.tx, serviceID)
}

func (t *Tx) InsertOutcome(ctx context.Context, o *domain.Outcome) error {
	var latency any
	if o.LatencyMS != nil {
		latency = *o.LatencyMS
	}
	var code any
	if o.Code != nil {
		code = *o.Code
	}
	var errMsg any
	if o.Error != "" {
		errMsg = o.Error
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO health_checks (service_id, timestamp, status, response_time, status_code, error_message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.ServiceID, o.Timestamp, string(o.Status), latency, code, errMsg)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	o.ID, err = res.LastInsertId()
	return err
}

func (t *Tx) InsertIncident(ctx context.Context, i *domain.Incident) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO incidents (service_id, started_at, ended_at, duration, status, description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		i.ServiceID, i.StartedAt, i.EndedAt, i.DurationSec, string(i.Status), i.Description)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	i.ID, err = res.LastInsertId()
	return err
}

func (t *Tx) UpdateIncident(ctx context.Context, i domain.Incident) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE incidents SET ended_at = ?, duration = ?, status = ?, description = ?
		 WHERE id = ?`,
		i.EndedAt, i.DurationSec, string(i.Status), i.Description, i.ID)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

func (t *Tx) DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM health_checks WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete outcomes: %w", err)
	}
	return res.RowsAffected()
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }
