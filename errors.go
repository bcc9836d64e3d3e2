package quoll

import "errors"

var (
	// ErrDatabaseClosed is returned by operations attempted after the
	// database has been closed. It is reported, never panicked.
	ErrDatabaseClosed = errors.New("database is closed")
	// ErrCollectionClosed is returned by operations on a collection that
	// has been closed, typically during database shutdown.
	ErrCollectionClosed = errors.New("collection is closed")
	// ErrInvalidName is returned when a collection name is empty or
	// collides with a reserved namespace token.
	ErrInvalidName = errors.New("invalid collection name")
	// ErrInvalidRepositoryType is returned when a repository type has no
	// stable fully-qualified name (unnamed or built-in types).
	ErrInvalidRepositoryType = errors.New("invalid repository type")
	// ErrInvalidCredentials is returned when the supplied username and
	// password do not match the database's stored credential record.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCredentialsRequired is returned when opening a database that was
	// created with credentials and none were supplied.
	ErrCredentialsRequired = errors.New("credentials required")
	// ErrMissingDocumentID is returned by Update when the document carries
	// no identifier.
	ErrMissingDocumentID = errors.New("document has no id")
)
