// Package sqlstore persists session values in a SQL table through bun.
package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Entry is the bun model for a stored value
type Entry struct {
	bun.BaseModel `bun:"table:kv_entries,alias:kv"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Key       string    `bun:"entry_key,notnull,unique"`
	Value     string    `bun:"value,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// NewEntriesRepository returns the repository used to look entries up by key
func NewEntriesRepository(db *bun.DB) repository.Repository[*Entry] {
	handlers := repository.ModelHandlers[*Entry]{
		NewRecord: func() *Entry {
			return &Entry{}
		},
		GetID: func(record *Entry) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Entry, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "entry_key"
		},
	}
	return repository.NewRepository(db, handlers)
}

// Storage implements auth.Storage on top of a bun database
type Storage struct {
	db      *bun.DB
	entries repository.Repository[*Entry]
	now     func() time.Time
}

// New wraps db. Call Migrate before first use.
func New(db *bun.DB) *Storage {
	return &Storage{
		db:      db,
		entries: NewEntriesRepository(db),
		now:     time.Now,
	}
}

// OpenSQLite opens a sqlite database. An empty dsn opens a fresh in-memory
// database that no other call to OpenSQLite can see.
func OpenSQLite(dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = MemoryDSN()
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// MemoryDSN returns a dsn for a uniquely named in-memory database. The
// database lives while at least one connection to it is open.
func MemoryDSN() string {
	return "file:" + uuid.NewString() + "?mode=memory&cache=shared"
}

// Migrate creates the entries table when missing
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create kv_entries table")
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	record, err := s.entries.GetByIdentifier(ctx, key)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", false, nil
		}
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read stored value").
			WithMetadata(map[string]any{"key": key})
	}
	return record.Value, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	now := s.now().UTC()
	record := &Entry{
		ID:        uuid.New(),
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (entry_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write stored value").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*Entry)(nil)).
		Where("entry_key = ?", key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove stored value").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}
