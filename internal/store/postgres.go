package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/searchworks/persondex/pkg/postgres"
)

// PersonStore is the PostgreSQL-backed Store.
type PersonStore struct {
	client *postgres.Client
}

// NewPersonStore wraps a connected postgres client.
func NewPersonStore(client *postgres.Client) *PersonStore {
	return &PersonStore{client: client}
}

// EnsureSchema creates the people table and its name indexes when they
// do not exist yet.
func (s *PersonStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS people (
			id BIGINT PRIMARY KEY,
			given_name TEXT NOT NULL,
			family_name TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_people_given_name ON people (LOWER(given_name))`,
		`CREATE INDEX IF NOT EXISTS idx_people_family_name ON people (LOWER(family_name))`,
	}
	for _, stmt := range statements {
		if _, err := s.client.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring people schema: %w", err)
		}
	}
	return nil
}

func (s *PersonStore) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.client.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting people: %w", err)
	}
	return count, nil
}

func (s *PersonStore) FetchAll(ctx context.Context, fn func(Person) error) error {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, given_name, family_name FROM people ORDER BY id`)
	if err != nil {
		return fmt.Errorf("querying all people: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.GivenName, &p.FamilyName); err != nil {
			return fmt.Errorf("scanning person row: %w", err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating people rows: %w", err)
	}
	return nil
}

func (s *PersonStore) FetchByExactID(ctx context.Context, id int64) (*Person, error) {
	var p Person
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT id, given_name, family_name FROM people WHERE id = $1`, id).
		Scan(&p.ID, &p.GivenName, &p.FamilyName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching person %d: %w", id, err)
	}
	return &p, nil
}

func (s *PersonStore) FetchByIDPrefix(ctx context.Context, prefix string, limit int) ([]Person, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, given_name, family_name FROM people
		 WHERE CAST(id AS TEXT) LIKE $1 || '%'
		 ORDER BY id
		 LIMIT $2`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching people by id prefix %q: %w", prefix, err)
	}
	return scanPeople(rows)
}

func (s *PersonStore) FetchByExactGivenAndFamilySubstring(ctx context.Context, given, familySub string, limit int) ([]Person, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, given_name, family_name FROM people
		 WHERE LOWER(given_name) = LOWER($1)
		   AND LOWER(family_name) LIKE '%' || LOWER($2) || '%'
		 ORDER BY id
		 LIMIT $3`, given, familySub, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching people by name %q %q: %w", given, familySub, err)
	}
	return scanPeople(rows)
}

// InsertBatch upserts a batch of people in one transaction. Existing
// ids are overwritten, matching the importer's replace semantics.
func (s *PersonStore) InsertBatch(ctx context.Context, people []Person) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO people (id, given_name, family_name)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE
			 SET given_name = EXCLUDED.given_name, family_name = EXCLUDED.family_name`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range people {
			if _, err := stmt.ExecContext(ctx, p.ID, p.GivenName, p.FamilyName); err != nil {
				return fmt.Errorf("inserting person %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

func scanPeople(rows *sql.Rows) ([]Person, error) {
	defer rows.Close()
	var people []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.GivenName, &p.FamilyName); err != nil {
			return nil, fmt.Errorf("scanning person row: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating people rows: %w", err)
	}
	return people, nil
}
