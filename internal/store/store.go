// Package store is the durable keyed storage for project, credential, and
// usage-counter records, addressed by the deterministic identifiers from the
// domain package. It emulates the execution substrate's locking discipline
// with per-record mutexes: operations against the same credential serialize,
// operations against different credentials run concurrently.
//
// Lock ordering is uniform throughout: credential, then its usage counter,
// then the parent project. The map-level mutex is only ever taken last and
// never held while waiting on a record lock, so the orders cannot cycle.
package store

import (
	"sync"

	"github.com/filipexyz/keygate/internal/domain"
)

type projectRecord struct {
	mu     sync.RWMutex
	closed bool
	rec    domain.Project
}

type credentialRecord struct {
	mu     sync.Mutex
	closed bool
	rec    domain.Credential
}

type usageRecord struct {
	mu     sync.Mutex
	closed bool
	rec    domain.UsageCounter
}

// Store holds all records. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	projects    map[domain.Address]*projectRecord
	credentials map[domain.Address]*credentialRecord
	usage       map[domain.Address]*usageRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		projects:    make(map[domain.Address]*projectRecord),
		credentials: make(map[domain.Address]*credentialRecord),
		usage:       make(map[domain.Address]*usageRecord),
	}
}

func (s *Store) project(addr domain.Address) (*projectRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[addr]
	return p, ok
}

func (s *Store) credential(addr domain.Address) (*credentialRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[addr]
	return c, ok
}

func (s *Store) usageCounter(addr domain.Address) (*usageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usage[addr]
	return u, ok
}

// CreateProject allocates a project record at the given address.
func (s *Store) CreateProject(addr domain.Address, rec domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[addr]; ok {
		return domain.ErrRecordExists
	}
	s.projects[addr] = &projectRecord{rec: rec}
	return nil
}

// ViewProject runs fn with shared access to the project record.
func (s *Store) ViewProject(addr domain.Address, fn func(*domain.Project) error) error {
	p, ok := s.project(addr)
	if !ok {
		return domain.ErrNotFound
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return domain.ErrNotFound
	}
	return fn(&p.rec)
}

// UpdateProject runs fn with exclusive access to the project record.
// Mutations made by fn are committed even when fn returns an error; callers
// order their checks so a failed operation leaves only the mutations it
// defines.
func (s *Store) UpdateProject(addr domain.Address, fn func(*domain.Project) error) error {
	p, ok := s.project(addr)
	if !ok {
		return domain.ErrNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrNotFound
	}
	return fn(&p.rec)
}

// DeleteProject removes the project record after guard approves it.
func (s *Store) DeleteProject(addr domain.Address, guard func(*domain.Project) error) error {
	p, ok := s.project(addr)
	if !ok {
		return domain.ErrNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrNotFound
	}
	if err := guard(&p.rec); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.projects, addr)
	s.mu.Unlock()
	p.closed = true
	return nil
}

// IssueCredential atomically allocates a credential and its usage counter
// under the parent project's exclusive lock. build validates the request,
// mutates the project counters, and returns the two new records; if it
// errors nothing is inserted.
func (s *Store) IssueCredential(
	projectAddr, credAddr, usageAddr domain.Address,
	build func(p *domain.Project) (domain.Credential, domain.UsageCounter, error),
) error {
	p, ok := s.project(projectAddr)
	if !ok {
		return domain.ErrNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[credAddr]; exists {
		return domain.ErrRecordExists
	}
	if _, exists := s.usage[usageAddr]; exists {
		return domain.ErrRecordExists
	}

	cred, usage, err := build(&p.rec)
	if err != nil {
		return err
	}
	s.credentials[credAddr] = &credentialRecord{rec: cred}
	s.usage[usageAddr] = &usageRecord{rec: usage}
	return nil
}

// ViewCredential runs fn with the credential record locked.
func (s *Store) ViewCredential(addr domain.Address, fn func(*domain.Credential) error) error {
	return s.UpdateCredential(addr, fn)
}

// UpdateCredential runs fn with exclusive access to the credential record.
// Same commit-on-error semantics as UpdateProject.
func (s *Store) UpdateCredential(addr domain.Address, fn func(*domain.Credential) error) error {
	c, ok := s.credential(addr)
	if !ok {
		return domain.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrNotFound
	}
	return fn(&c.rec)
}

// UpdateCredentialAndUsage runs fn with both the credential and its usage
// counter exclusively locked, which is the access pattern of every
// verification. Same commit-on-error semantics as UpdateProject.
func (s *Store) UpdateCredentialAndUsage(
	credAddr, usageAddr domain.Address,
	fn func(*domain.Credential, *domain.UsageCounter) error,
) error {
	c, ok := s.credential(credAddr)
	if !ok {
		return domain.ErrNotFound
	}
	u, ok := s.usageCounter(usageAddr)
	if !ok {
		return domain.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return domain.ErrNotFound
	}
	return fn(&c.rec, &u.rec)
}

// ViewUsage runs fn with the usage counter locked.
func (s *Store) ViewUsage(addr domain.Address, fn func(*domain.UsageCounter) error) error {
	u, ok := s.usageCounter(addr)
	if !ok {
		return domain.ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return domain.ErrNotFound
	}
	return fn(&u.rec)
}

// DeleteUsage removes a usage counter. The credential lock is held so the
// close serializes against in-flight verifications of the same credential.
func (s *Store) DeleteUsage(
	credAddr, usageAddr domain.Address,
	guard func(c *domain.Credential, u *domain.UsageCounter) error,
) error {
	c, ok := s.credential(credAddr)
	if !ok {
		return domain.ErrNotFound
	}
	u, ok := s.usageCounter(usageAddr)
	if !ok {
		return domain.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return domain.ErrNotFound
	}
	if err := guard(&c.rec, &u.rec); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.usage, usageAddr)
	s.mu.Unlock()
	u.closed = true
	return nil
}

// DeleteCredential removes a credential record. Fails with
// ErrUsageCounterOpen while the paired usage counter still exists; closes
// must run child before parent. The usage set for this credential cannot
// change while its lock is held, so the existence check is stable.
func (s *Store) DeleteCredential(
	credAddr, usageAddr domain.Address,
	guard func(c *domain.Credential) error,
) error {
	c, ok := s.credential(credAddr)
	if !ok {
		return domain.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrNotFound
	}

	s.mu.RLock()
	_, usageOpen := s.usage[usageAddr]
	s.mu.RUnlock()
	if usageOpen {
		return domain.ErrUsageCounterOpen
	}

	if err := guard(&c.rec); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.credentials, credAddr)
	s.mu.Unlock()
	c.closed = true
	return nil
}

// GetProject returns a snapshot copy of a project record.
func (s *Store) GetProject(addr domain.Address) (domain.Project, error) {
	var out domain.Project
	err := s.ViewProject(addr, func(p *domain.Project) error {
		out = *p
		return nil
	})
	return out, err
}

// GetCredential returns a snapshot copy of a credential record.
func (s *Store) GetCredential(addr domain.Address) (domain.Credential, error) {
	var out domain.Credential
	err := s.ViewCredential(addr, func(c *domain.Credential) error {
		out = *c
		if c.ExpiresAt != nil {
			exp := *c.ExpiresAt
			out.ExpiresAt = &exp
		}
		if c.LastVerifiedAt != nil {
			lv := *c.LastVerifiedAt
			out.LastVerifiedAt = &lv
		}
		return nil
	})
	return out, err
}

// GetUsage returns a snapshot copy of a usage counter.
func (s *Store) GetUsage(addr domain.Address) (domain.UsageCounter, error) {
	var out domain.UsageCounter
	err := s.ViewUsage(addr, func(u *domain.UsageCounter) error {
		out = *u
		return nil
	})
	return out, err
}
