package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"rollcall/internal/model"
)

// Postgres implements Store on database/sql using the pgx driver.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with sane pool defaults, pings, and migrates the
// schema. The returned store owns the connection; call Close when done.
func OpenPostgres(ctx context.Context, connString string) (*Postgres, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, wrap("open", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		return nil, wrap("ping", err)
	}
	if err := migrate(ctx, db); err != nil {
		return nil, wrap("migrate", err)
	}
	return &Postgres{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id        TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		password  TEXT NOT NULL,
		role      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_tokens (
		date  TEXT PRIMARY KEY,
		code  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		user_name    TEXT NOT NULL,
		date         TEXT NOT NULL,
		time         TEXT NOT NULL,
		position     TEXT NOT NULL,
		photo        TEXT NOT NULL,
		description  TEXT NOT NULL,
		lat          DOUBLE PRECISION NOT NULL,
		lng          DOUBLE PRECISION NOT NULL,
		comments     JSONB NOT NULL DEFAULT '[]',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_records_user ON attendance_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_records_date ON attendance_records(date);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) InsertUser(ctx context.Context, u model.User) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, name, password, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, u.ID, u.Name, u.Password, u.Role)
	if err != nil {
		return wrap("insert user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (model.User, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, password, role FROM users WHERE id = $1
	`, id)
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Password, &u.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, wrap("get user", err)
	}
	return u, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, u model.User) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE users SET name = $2, password = $3, role = $4 WHERE id = $1
	`, u.ID, u.Name, u.Password, u.Role)
	if err != nil {
		return wrap("update user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrap("delete user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, password, role FROM users ORDER BY id
	`)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Password, &u.Role); err != nil {
			return nil, wrap("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list users", err)
	}
	return out, nil
}

func (p *Postgres) GetDailyToken(ctx context.Context, date string) (model.DailyToken, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT date, code FROM daily_tokens WHERE date = $1
	`, date)
	var t model.DailyToken
	if err := row.Scan(&t.Date, &t.Code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DailyToken{}, ErrNotFound
		}
		return model.DailyToken{}, wrap("get daily token", err)
	}
	return t, nil
}

func (p *Postgres) CreateDailyToken(ctx context.Context, t model.DailyToken) error {
	// The primary key on date arbitrates the first-request-of-the-day race:
	// the loser sees zero rows affected and re-fetches the winner's code.
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO daily_tokens (date, code)
		VALUES ($1, $2)
		ON CONFLICT (date) DO NOTHING
	`, t.Date, t.Code)
	if err != nil {
		return wrap("create daily token", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (p *Postgres) InsertRecord(ctx context.Context, r model.AttendanceRecord) error {
	if r.Comments == nil {
		// JSONB '||' appends onto an array, not onto a null scalar.
		r.Comments = []model.Comment{}
	}
	comments, err := json.Marshal(r.Comments)
	if err != nil {
		return wrap("encode comments", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO attendance_records
			(id, user_id, user_name, date, time, position, photo, description, lat, lng, comments, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, r.ID, r.UserID, r.UserName, r.Date, r.Time, r.Position, r.Photo, r.Description,
		r.Location.Lat, r.Location.Lng, comments, r.CreatedAt)
	if err != nil {
		return wrap("insert record", err)
	}
	return nil
}

const recordColumns = `id, user_id, user_name, date, time, position, photo, description, lat, lng, comments, created_at`

func (p *Postgres) GetRecord(ctx context.Context, id string) (model.AttendanceRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records WHERE id = $1
	`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AttendanceRecord{}, ErrNotFound
		}
		return model.AttendanceRecord{}, wrap("get record", err)
	}
	return r, nil
}

func (p *Postgres) ListRecords(ctx context.Context) ([]model.AttendanceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, wrap("list records", err)
	}
	defer rows.Close()

	var out []model.AttendanceRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, wrap("scan record", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list records", err)
	}
	return out, nil
}

func (p *Postgres) AppendComment(ctx context.Context, recordID string, c model.Comment) ([]model.Comment, error) {
	encoded, err := json.Marshal(c)
	if err != nil {
		return nil, wrap("encode comment", err)
	}
	// Single-statement JSONB append: concurrent appends serialize on the row
	// instead of overwriting each other through read-modify-write.
	row := p.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET comments = comments || $2::jsonb
		WHERE id = $1
		RETURNING comments
	`, recordID, encoded)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrap("append comment", err)
	}
	var comments []model.Comment
	if err := json.Unmarshal(raw, &comments); err != nil {
		return nil, wrap("decode comments", err)
	}
	return comments, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (model.AttendanceRecord, error) {
	var r model.AttendanceRecord
	var raw []byte
	if err := s.Scan(&r.ID, &r.UserID, &r.UserName, &r.Date, &r.Time, &r.Position,
		&r.Photo, &r.Description, &r.Location.Lat, &r.Location.Lng, &raw, &r.CreatedAt); err != nil {
		return model.AttendanceRecord{}, err
	}
	if err := json.Unmarshal(raw, &r.Comments); err != nil {
		return model.AttendanceRecord{}, err
	}
	return r, nil
}
