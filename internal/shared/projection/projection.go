package projection

import "time"

// Metadata captures persistence timestamps shared by projections.
type Metadata struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Projection represents an aggregate view plus persistence metadata.
// Version increases by one with every accepted write.
type Projection[T any] struct {
	Entity   T
	Version  int64
	Metadata Metadata
}

// New wraps an entity with its metadata.
func New[T any](entity T, version int64, createdAt, updatedAt time.Time) *Projection[T] {
	return &Projection[T]{
		Entity:   entity,
		Version:  version,
		Metadata: Metadata{CreatedAt: createdAt, UpdatedAt: updatedAt},
	}
}
