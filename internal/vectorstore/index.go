package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for index operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch is returned when a vector does not fit its collection.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// MaxCollectionNameLength is the longest accepted collection name.
const MaxCollectionNameLength = 255

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateCollectionName rejects empty names, names over 255 bytes and names
// with characters outside [A-Za-z0-9_.-]. Names starting with a dot are
// rejected so a name can never address a parent directory.
func ValidateCollectionName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	case len(name) > MaxCollectionNameLength:
		return fmt.Errorf("%w: collection name exceeds %d characters", ErrInvalidCollectionName, MaxCollectionNameLength)
	case name[0] == '.' || !collectionNamePattern.MatchString(name):
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Point is one vector with its identifier and payload, as written by sync.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]string
}

// Record is a stored point as returned by Scroll, without its vector.
type Record struct {
	ID      uint64
	Payload map[string]string
}

// ScoredRecord is a Search hit. Higher Score means more similar.
type ScoredRecord struct {
	Record
	Score float32
}

// Index is a vector database holding named collections.
//
// Implementations compare vectors by cosine similarity. Scroll returns
// records in no particular order. Operations on a missing collection fail
// with ErrCollectionNotFound, except RecreateCollection which creates it.
type Index interface {
	// RecreateCollection drops name if it exists and creates it empty with
	// the given vector size.
	RecreateCollection(ctx context.Context, name string, dim uint64) error

	// Upsert writes points, replacing any with the same id.
	Upsert(ctx context.Context, name string, points []Point) error

	// Scroll returns up to limit records.
	Scroll(ctx context.Context, name string, limit int) ([]Record, error)

	// Search returns up to limit nearest neighbours of vector, best first.
	Search(ctx context.Context, name string, vector []float32, limit int) ([]ScoredRecord, error)

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// DeleteCollection permanently removes a collection.
	DeleteCollection(ctx context.Context, name string) error

	Close() error
}

// CollectionExists reports whether name is among idx's collections.
func CollectionExists(ctx context.Context, idx Index, name string) (bool, error) {
	names, err := idx.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}
