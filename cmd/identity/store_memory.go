package identity

import (
	"context"
	"sync"

	"unileap/cmd/identity/ids"
)

// MemoryStore is an in-process Store. Data is lost on restart.
type MemoryStore struct {
	hasher *Hasher

	mu      sync.RWMutex
	byID    map[string]memUser
	byEmail map[string]string
}

type memUser struct {
	user User
	hash string
}

// NewMemoryStore returns an empty store hashing with h (DefaultHasher if nil).
func NewMemoryStore(h *Hasher) *MemoryStore {
	if h == nil {
		h = DefaultHasher()
	}
	return &MemoryStore{
		hasher:  h,
		byID:    make(map[string]memUser),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	p, err := prepare(op, s.hasher, in)
	if err != nil {
		return User{}, err
	}

	s.mu.RLock()
	_, taken := s.byEmail[p.emailNorm]
	s.mu.RUnlock()
	if taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	// Hash outside the lock; the uniqueness check is repeated below.
	hash, err := s.hasher.Hash(p.password)
	if err != nil {
		return User{}, invalid(op, err.Error())
	}
	id, err := ids.NewULID(p.now)
	if err != nil {
		return User{}, err
	}
	u := User{ID: id, Name: p.name, Email: p.email, EmailNorm: p.emailNorm, CreatedAt: p.now}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[p.emailNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	s.byID[id] = memUser{user: u, hash: hash}
	s.byEmail[p.emailNorm] = id
	return u, nil
}

func (s *MemoryStore) Authenticate(ctx context.Context, email, password string) (User, error) {
	const op = "identity.Authenticate"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	rec := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		s.hasher.Burn(password)
		return User{}, badCredentials(op)
	}
	if !s.hasher.Check(rec.hash, password) {
		return User{}, badCredentials(op)
	}
	return rec.user, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return rec.user, nil
}
