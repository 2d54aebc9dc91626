// Package store provides access to the person corpus in PostgreSQL.
package store

import "context"

// Person is one row of the people table.
type Person struct {
	ID         int64  `json:"id"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Store is the read surface the search core consumes. Implementations
// must be safe for concurrent use.
type Store interface {
	// CountAll returns the corpus size, used for build progress.
	CountAll(ctx context.Context) (int64, error)

	// FetchAll streams every person to fn in id order. A non-nil error
	// from fn aborts the scan.
	FetchAll(ctx context.Context, fn func(Person) error) error

	// FetchByExactID returns the person with the given id, or nil when
	// no such row exists.
	FetchByExactID(ctx context.Context, id int64) (*Person, error)

	// FetchByIDPrefix returns up to limit people whose identifier,
	// rendered as text, starts with prefix.
	FetchByIDPrefix(ctx context.Context, prefix string, limit int) ([]Person, error)

	// FetchByExactGivenAndFamilySubstring returns up to limit people
	// whose given name equals given case-insensitively and whose family
	// name contains familySub case-insensitively.
	FetchByExactGivenAndFamilySubstring(ctx context.Context, given, familySub string, limit int) ([]Person, error)
}
