// Package cellid tracks notebook cell identifiers seen during a run and
// generates fresh ones that do not collide with them.
package cellid

import "context"

// Set records identifiers already used in a run.
// Implementations must make Add atomic: a true result means no other cell of
// the run holds the id and the caller now does.
type Set interface {
	Add(ctx context.Context, id string) (bool, error)
	Contains(ctx context.Context, id string) (bool, error)
	Len(ctx context.Context) (int, error)
}

type ownerKey struct{}

// WithOwner returns a context naming the file on whose behalf ids are added.
// Sets shared between invocations use it to let a file keep ids it claimed
// earlier in the same run.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the owner stored by WithOwner, or "".
func OwnerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// MemorySet is a process-local Set. It is not safe for concurrent use.
type MemorySet struct {
	ids map[string]struct{}
}

// NewMemorySet returns a set seeded with ids.
func NewMemorySet(ids ...string) *MemorySet {
	s := &MemorySet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *MemorySet) Add(_ context.Context, id string) (bool, error) {
	if _, exists := s.ids[id]; exists {
		return false, nil
	}
	s.ids[id] = struct{}{}
	return true, nil
}

func (s *MemorySet) Contains(_ context.Context, id string) (bool, error) {
	_, exists := s.ids[id]
	return exists, nil
}

func (s *MemorySet) Len(_ context.Context) (int, error) {
	return len(s.ids), nil
}
