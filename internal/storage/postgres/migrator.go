package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Миграции схемы WaterMate: sql/migrations/NNNN_name.{up,down}.sql, встроены в бинарник.
// Применённые версии хранятся в schema_migrations; параллельные запуски
// сериализуются advisory-локом.
const (
	migrationsDir       = "sql/migrations"
	migrationLockKey    = int64(52740019)
	migrationLockWait   = 5 * time.Second
	migrationStatusWait = 5 * time.Second
	schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	embeddedMigrations embed.FS

	migrationFileRe = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

	errStoreNotInitialized = errors.New("postgres store is not initialized")
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Label — имя миграции в виде 0002_notifications.
func (m migration) Label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// migrationSet упорядочен по возрастанию версии.
type migrationSet []migration

func (set migrationSet) find(version int64) (migration, bool) {
	i, ok := slices.BinarySearchFunc(set, version, func(m migration, v int64) int {
		return cmp.Compare(m.Version, v)
	})
	if !ok {
		return migration{}, false
	}
	return set[i], true
}

func (set migrationSet) pending(applied []int64) []string {
	var out []string
	for _, m := range set {
		if !slices.Contains(applied, m.Version) {
			out = append(out, m.Label())
		}
	}
	return out
}

// MigrationState — состояние схемы.
type MigrationState struct {
	// Version — старшая применённая версия, 0 для пустой базы.
	Version int64
	Applied int
	Pending []string
	// Unknown — применённые версии, которых нет среди встроенных миграций.
	Unknown []int64
}

// MigrateUp применяет up-миграции; steps=0 применяет все ожидающие.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn, set migrationSet) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		done := 0
		for _, m := range set {
			if steps > 0 && done >= steps {
				break
			}
			if slices.Contains(applied, m.Version) {
				continue
			}
			if err := runMigration(ctx, conn, m, true); err != nil {
				return err
			}
			done++
		}
		return nil
	})
}

// MigrateDown откатывает последние steps миграций; steps<=0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrationLock(ctx, func(conn *sql.Conn, set migrationSet) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		for i := len(applied) - 1; i >= 0 && steps > 0; i-- {
			m, ok := set.find(applied[i])
			if !ok {
				return fmt.Errorf("cannot rollback unknown migration version %d", applied[i])
			}
			if err := runMigration(ctx, conn, m, false); err != nil {
				return err
			}
			steps--
		}
		return nil
	})
}

// MigrationStatus сравнивает schema_migrations со встроенными миграциями.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errStoreNotInitialized
	}
	set, err := loadMigrations(embeddedMigrations)
	if err != nil {
		return MigrationState{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, migrationStatusWait)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(ctx, s.db)
	if err != nil {
		return MigrationState{}, err
	}
	return describeSchema(set, applied), nil
}

func describeSchema(set migrationSet, applied []int64) MigrationState {
	state := MigrationState{Applied: len(applied), Pending: set.pending(applied)}
	for _, v := range applied {
		state.Version = max(state.Version, v)
		if _, ok := set.find(v); !ok {
			state.Unknown = append(state.Unknown, v)
		}
	}
	return state
}

// withMigrationLock держит advisory-лок на выделенном подключении, пока выполняется fn.
func (s *Store) withMigrationLock(ctx context.Context, fn func(*sql.Conn, migrationSet) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	set, err := loadMigrations(embeddedMigrations)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, migrationLockWait)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn, set)
}

// runMigration выполняет одну миграцию и её учёт в schema_migrations одной транзакцией.
func runMigration(ctx context.Context, conn *sql.Conn, m migration, up bool) (err error) {
	direction, body := "down", m.DownSQL
	if up {
		direction, body = "up", m.UpSQL
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s migration %s: %w", direction, m.Label(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("execute %s migration %s: %w", direction, m.Label(), err)
	}
	if up {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, NOW())`, m.Version, m.Name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("record %s migration %s: %w", direction, m.Label(), err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", direction, m.Label(), err)
	}

	log.WithFields(log.Fields{
		"component": "postgres.migrator",
		"migration": m.Label(),
		"direction": direction,
	}).Info("миграция выполнена")
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// appliedVersions возвращает применённые версии по возрастанию.
func appliedVersions(ctx context.Context, q queryer) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// loadMigrations собирает пары up/down из fsys; у каждой версии должны быть оба файла.
func loadMigrations(fsys fs.FS) (migrationSet, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		if err := addMigrationFile(fsys, byVersion, entry.Name()); err != nil {
			return nil, err
		}
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	set := make(migrationSet, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.Label())
		}
		set = append(set, *m)
	}
	slices.SortFunc(set, func(a, b migration) int { return cmp.Compare(a.Version, b.Version) })
	return set, nil
}

func addMigrationFile(fsys fs.FS, byVersion map[int64]*migration, file string) error {
	parts := migrationFileRe.FindStringSubmatch(file)
	if parts == nil {
		return fmt.Errorf("invalid migration file name: %s", file)
	}
	version, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parse migration version from %s: %w", file, err)
	}
	name, direction := parts[2], parts[3]

	raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, file))
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", file, err)
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return fmt.Errorf("migration file is empty: %s", file)
	}

	m, ok := byVersion[version]
	switch {
	case !ok:
		m = &migration{Version: version, Name: name}
		byVersion[version] = m
	case m.Name != name:
		return fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, name)
	}

	target := &m.DownSQL
	if direction == "up" {
		target = &m.UpSQL
	}
	if *target != "" {
		return fmt.Errorf("duplicate %s migration for version %d", direction, version)
	}
	*target = body
	return nil
}
