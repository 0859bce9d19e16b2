// Package engine implements the credential lifecycle and verification
// engine: namespace management, issuance, the status state machine, and the
// atomic verification path combining hash comparison, scope authorization,
// and fixed-window rate limiting.
//
// Every exported operation is a single atomic unit against the store. An
// operation either fully commits its defined mutations or fails with no
// visible effect, with one deliberate exception: a verification that fails
// after its rate-window check still commits the counter mutations the
// earlier steps defined (the rate counter advances on every attempt, the
// failure counter on every hash mismatch).
package engine

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/filipexyz/keygate/internal/domain"
	"github.com/filipexyz/keygate/internal/ratelimit"
	"github.com/filipexyz/keygate/internal/scope"
	"github.com/filipexyz/keygate/internal/store"
)

// Engine executes all credential operations against a record store.
type Engine struct {
	store       *store.Store
	clock       domain.Clock
	emitter     Emitter
	windowSlots uint64
	logger      *slog.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithEmitter sets the event sink.
func WithEmitter(em Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithWindowSlots overrides the rate-window duration in slots.
func WithWindowSlots(slots uint64) Option {
	return func(e *Engine) {
		if slots > 0 {
			e.windowSlots = slots
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over the given store and logical clock.
func New(s *store.Store, clock domain.Clock, opts ...Option) *Engine {
	e := &Engine{
		store:       s,
		clock:       clock,
		emitter:     NoopEmitter{},
		windowSlots: domain.DefaultWindowSlots,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Slot returns the current logical clock value.
func (e *Engine) Slot() uint64 { return e.clock.Slot() }

// CreateProject allocates a new namespace owned by the caller. The project
// address is derived from (owner, namespaceID); creating the same pair twice
// fails with ErrRecordExists.
func (e *Engine) CreateProject(
	ctx context.Context,
	owner domain.Identity,
	namespaceID domain.NamespaceID,
	name, description string,
	defaultRateLimit uint32,
) (domain.Address, error) {
	if defaultRateLimit == 0 {
		return domain.Address{}, domain.ErrInvalidRateLimit
	}
	if len(name) > domain.MaxNameLen {
		return domain.Address{}, domain.ErrNameTooLong
	}
	if len(description) > domain.MaxDescriptionLen {
		return domain.Address{}, domain.ErrDescriptionTooLong
	}

	now := e.clock.Slot()
	addr := domain.ProjectAddress(owner, namespaceID)
	rec := domain.Project{
		Owner:            owner,
		NamespaceID:      namespaceID,
		Name:             name,
		Description:      description,
		DefaultRateLimit: defaultRateLimit,
		CreatedAt:        now,
	}
	if err := e.store.CreateProject(addr, rec); err != nil {
		return domain.Address{}, err
	}

	e.emit(ctx, EventProjectCreated, now, ProjectCreatedEvent{
		Project:     addr,
		Owner:       owner,
		NamespaceID: namespaceID,
		Name:        name,
	})
	return addr, nil
}

// TransferProjectOwner hands the project to a new owner. The project address
// is fixed at creation and does not change with ownership.
func (e *Engine) TransferProjectOwner(
	ctx context.Context,
	owner domain.Identity,
	projectAddr domain.Address,
	newOwner domain.Identity,
) error {
	var oldOwner domain.Identity
	err := e.store.UpdateProject(projectAddr, func(p *domain.Project) error {
		if p.Owner != owner {
			return domain.ErrUnauthorized
		}
		oldOwner = p.Owner
		p.Owner = newOwner
		return nil
	})
	if err != nil {
		return err
	}

	e.emit(ctx, EventProjectOwnerTransferred, e.clock.Slot(), ProjectOwnerTransferredEvent{
		Project:  projectAddr,
		OldOwner: oldOwner,
		NewOwner: newOwner,
	})
	return nil
}

// CloseProject destroys a project. Fails with ErrProjectHasKeys while any
// child credential exists; closes run strictly child before parent.
func (e *Engine) CloseProject(ctx context.Context, owner domain.Identity, projectAddr domain.Address) error {
	err := e.store.DeleteProject(projectAddr, func(p *domain.Project) error {
		if p.Owner != owner {
			return domain.ErrUnauthorized
		}
		if p.TotalCredentials > 0 {
			return domain.ErrProjectHasKeys
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.emit(ctx, EventProjectClosed, e.clock.Slot(), ProjectClosedEvent{Project: projectAddr})
	return nil
}

// IssueCredential allocates a credential and its paired usage counter. The
// index must equal the project's current credential count, so indexes have
// no gaps and the credential address is derivable by any caller.
func (e *Engine) IssueCredential(
	ctx context.Context,
	owner domain.Identity,
	projectAddr domain.Address,
	index uint16,
	name string,
	secretHash domain.Hash,
	scopes uint64,
	expiresAt *uint64,
	rateLimitOverride *uint32,
) (domain.Address, error) {
	if len(name) > domain.MaxNameLen {
		return domain.Address{}, domain.ErrNameTooLong
	}
	now := e.clock.Slot()
	if expiresAt != nil && *expiresAt <= now {
		return domain.Address{}, domain.ErrExpiryInPast
	}
	if rateLimitOverride != nil && *rateLimitOverride == 0 {
		return domain.Address{}, domain.ErrInvalidRateLimit
	}

	credAddr := domain.CredentialAddress(projectAddr, index)
	usageAddr := domain.UsageAddress(credAddr)

	err := e.store.IssueCredential(projectAddr, credAddr, usageAddr,
		func(p *domain.Project) (domain.Credential, domain.UsageCounter, error) {
			if p.Owner != owner {
				return domain.Credential{}, domain.UsageCounter{}, domain.ErrUnauthorized
			}
			if p.TotalCredentials >= domain.MaxCredentialsPerProject {
				return domain.Credential{}, domain.UsageCounter{}, domain.ErrMaxKeysReached
			}
			if index != p.TotalCredentials {
				return domain.Credential{}, domain.UsageCounter{}, domain.ErrInvalidKeyIndex
			}

			rateLimit := p.DefaultRateLimit
			if rateLimitOverride != nil {
				rateLimit = *rateLimitOverride
			}

			cred := domain.Credential{
				ProjectRef: projectAddr,
				Index:      index,
				Name:       name,
				SecretHash: secretHash,
				Scopes:     scopes,
				Status:     domain.StatusActive,
				RateLimit:  rateLimit,
				ExpiresAt:  expiresAt,
				CreatedAt:  now,
			}
			usage := domain.UsageCounter{
				CredentialRef: credAddr,
				WindowStart:   now,
			}
			p.TotalCredentials++
			p.ActiveCredentials++
			return cred, usage, nil
		})
	if err != nil {
		return domain.Address{}, err
	}

	e.emit(ctx, EventCredentialIssued, now, CredentialIssuedEvent{
		Project:    projectAddr,
		Credential: credAddr,
		Index:      index,
		Name:       name,
		Scopes:     scopes,
		ExpiresAt:  expiresAt,
	})
	return credAddr, nil
}

// VerifyResult reports the outcome of a successful verification.
type VerifyResult struct {
	Slot               uint64
	RequestCount       uint32
	TotalVerifications uint64
}

// Verify checks a presented secret hash against a credential. The steps run
// in a fixed order: status, expiry, rate window, hash, scope. The rate
// counter advances on every attempt that reaches it; the failure counter
// advances only on hash mismatch, and the tenth consecutive mismatch revokes
// the credential permanently. Scope failures are pure rejections.
func (e *Engine) Verify(
	ctx context.Context,
	credAddr domain.Address,
	presentedHash domain.Hash,
	requiredScope uint64,
) (VerifyResult, error) {
	now := e.clock.Slot()
	usageAddr := domain.UsageAddress(credAddr)

	var (
		result      VerifyResult
		projectAddr domain.Address
		autoRevoked bool
	)
	err := e.store.UpdateCredentialAndUsage(credAddr, usageAddr,
		func(c *domain.Credential, u *domain.UsageCounter) error {
			if u.CredentialRef != credAddr {
				return domain.ErrKeyProjectMismatch
			}
			projectAddr = c.ProjectRef

			if c.Status != domain.StatusActive {
				return domain.ErrKeyNotActive
			}
			if c.Expired(now) {
				return domain.ErrKeyExpired
			}
			if err := ratelimit.Check(u, c.RateLimit, now, e.windowSlots); err != nil {
				return err
			}

			if subtle.ConstantTimeCompare(presentedHash[:], c.SecretHash[:]) != 1 {
				if c.FailedVerifications < domain.FailedVerificationLimit {
					c.FailedVerifications++
				}
				if c.FailedVerifications >= domain.FailedVerificationLimit {
					c.Status = domain.StatusRevoked
					autoRevoked = true
					if err := e.adjustActive(c.ProjectRef, -1); err != nil {
						e.logger.Error("adjust active credentials", "project", c.ProjectRef, "error", err)
					}
				}
				return domain.ErrInvalidKey
			}

			if !scope.Satisfies(c.Scopes, requiredScope) {
				return domain.ErrInsufficientScope
			}

			c.FailedVerifications = 0
			c.TotalVerifications++
			slot := now
			c.LastVerifiedAt = &slot
			result = VerifyResult{
				Slot:               now,
				RequestCount:       u.RequestCount,
				TotalVerifications: c.TotalVerifications,
			}
			return nil
		})

	if autoRevoked {
		e.emit(ctx, EventCredentialAutoRevoked, now, CredentialAutoRevokedEvent{
			Project:    projectAddr,
			Credential: credAddr,
			Reason:     "too_many_failed_verifications",
		})
	}
	if err != nil {
		return VerifyResult{}, err
	}

	e.emit(ctx, EventCredentialVerified, now, CredentialVerifiedEvent{
		Project:      projectAddr,
		Credential:   credAddr,
		RequestCount: result.RequestCount,
	})
	return result, nil
}

// RotateCredential atomically replaces the secret hash. There is no window
// where the old and new hash are both rejected or both accepted. Both
// verification counters reset; status is untouched.
func (e *Engine) RotateCredential(
	ctx context.Context,
	owner domain.Identity,
	credAddr domain.Address,
	newSecretHash domain.Hash,
	newExpiresAt *uint64,
) error {
	now := e.clock.Slot()
	if newExpiresAt != nil && *newExpiresAt <= now {
		return domain.ErrExpiryInPast
	}

	var projectAddr domain.Address
	err := e.store.UpdateCredential(credAddr, func(c *domain.Credential) error {
		if err := e.requireOwner(c, credAddr, owner); err != nil {
			return err
		}
		if c.Status != domain.StatusActive {
			return domain.ErrKeyNotActive
		}
		projectAddr = c.ProjectRef
		c.SecretHash = newSecretHash
		c.ExpiresAt = newExpiresAt
		c.FailedVerifications = 0
		c.TotalVerifications = 0
		return nil
	})
	if err != nil {
		return err
	}

	e.emit(ctx, EventCredentialRotated, now, CredentialRotatedEvent{
		Project:    projectAddr,
		Credential: credAddr,
	})
	return nil
}

// UpdateScopes replaces the credential's permission bitmask.
func (e *Engine) UpdateScopes(ctx context.Context, owner domain.Identity, credAddr domain.Address, newScopes uint64) error {
	var old uint64
	err := e.store.UpdateCredential(credAddr, func(c *domain.Credential) error {
		if err := e.requireOwner(c, credAddr, owner); err != nil {
			return err
		}
		old = c.Scopes
		c.Scopes = newScopes
		return nil
	})
	if err != nil {
		return err
	}

	e.emit(ctx, EventScopesUpdated, e.clock.Slot(), ScopesUpdatedEvent{
		Credential: credAddr,
		OldScopes:  old,
		NewScopes:  newScopes,
	})
	return nil
}

// UpdateRateLimit replaces the credential's per-window limit.
func (e *Engine) UpdateRateLimit(ctx context.Context, owner domain.Identity, credAddr domain.Address, newLimit uint32) error {
	if newLimit == 0 {
		return domain.ErrInvalidRateLimit
	}
	err := e.store.UpdateCredential(credAddr, func(c *domain.Credential) error {
		if err := e.requireOwner(c, credAddr, owner); err != nil {
			return err
		}
		c.RateLimit = newLimit
		return nil
	})
	if err != nil {
		return err
	}

	e.emit(ctx, EventRateLimitUpdated, e.clock.Slot(), RateLimitUpdatedEvent{
		Credential: credAddr,
		RateLimit:  newLimit,
	})
	return nil
}

// SuspendCredential moves an active credential to suspended.
func (e *Engine) SuspendCredential(ctx context.Context, owner domain.Identity, credAddr domain.Address) error {
	return e.transition(ctx, owner, credAddr, EventCredentialSuspended,
		func(c *domain.Credential) error {
			if c.Status != domain.StatusActive {
				return domain.ErrKeyNotActive
			}
			c.Status = domain.StatusSuspended
			return e.adjustActive(c.ProjectRef, -1)
		})
}

// ReactivateCredential moves a suspended credential back to active.
func (e *Engine) ReactivateCredential(ctx context.Context, owner domain.Identity, credAddr domain.Address) error {
	return e.transition(ctx, owner, credAddr, EventCredentialReactivated,
		func(c *domain.Credential) error {
			if c.Status != domain.StatusSuspended {
				return domain.ErrKeyNotSuspended
			}
			c.Status = domain.StatusActive
			return e.adjustActive(c.ProjectRef, 1)
		})
}

// RevokeCredential permanently revokes a credential. Allowed from active or
// suspended; revoked has no outgoing transition.
func (e *Engine) RevokeCredential(ctx context.Context, owner domain.Identity, credAddr domain.Address) error {
	return e.transition(ctx, owner, credAddr, EventCredentialRevoked,
		func(c *domain.Credential) error {
			if c.Status == domain.StatusRevoked {
				return domain.ErrKeyNotActive
			}
			wasActive := c.Status == domain.StatusActive
			c.Status = domain.StatusRevoked
			if wasActive {
				return e.adjustActive(c.ProjectRef, -1)
			}
			return nil
		})
}

// transition applies an owner-issued status change and emits its event.
func (e *Engine) transition(
	ctx context.Context,
	owner domain.Identity,
	credAddr domain.Address,
	eventType string,
	apply func(*domain.Credential) error,
) error {
	var projectAddr domain.Address
	err := e.store.UpdateCredential(credAddr, func(c *domain.Credential) error {
		if err := e.requireOwner(c, credAddr, owner); err != nil {
			return err
		}
		projectAddr = c.ProjectRef
		return apply(c)
	})
	if err != nil {
		return err
	}

	e.emit(ctx, eventType, e.clock.Slot(), CredentialStatusEvent{
		Project:    projectAddr,
		Credential: credAddr,
	})
	return nil
}

// CloseUsageCounter destroys a credential's usage counter for storage
// reclamation. Must precede CloseCredential.
func (e *Engine) CloseUsageCounter(ctx context.Context, owner domain.Identity, credAddr domain.Address) error {
	usageAddr := domain.UsageAddress(credAddr)
	err := e.store.DeleteUsage(credAddr, usageAddr,
		func(c *domain.Credential, u *domain.UsageCounter) error {
			return e.requireOwner(c, credAddr, owner)
		})
	if err != nil {
		return err
	}

	e.emit(ctx, EventUsageCounterClosed, e.clock.Slot(), UsageCounterClosedEvent{Credential: credAddr})
	return nil
}

// CloseCredential destroys a credential record. Its usage counter must be
// closed first. The project's total count always decrements; the active
// count only if the credential was still active, so the counters stay
// consistent regardless of status at closure.
func (e *Engine) CloseCredential(ctx context.Context, owner domain.Identity, credAddr domain.Address) error {
	usageAddr := domain.UsageAddress(credAddr)
	var projectAddr domain.Address
	err := e.store.DeleteCredential(credAddr, usageAddr, func(c *domain.Credential) error {
		if err := e.requireOwner(c, credAddr, owner); err != nil {
			return err
		}
		projectAddr = c.ProjectRef
		wasActive := c.Status == domain.StatusActive
		return e.store.UpdateProject(c.ProjectRef, func(p *domain.Project) error {
			if p.TotalCredentials > 0 {
				p.TotalCredentials--
			}
			if wasActive && p.ActiveCredentials > 0 {
				p.ActiveCredentials--
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	e.emit(ctx, EventCredentialClosed, e.clock.Slot(), CredentialClosedEvent{
		Project:    projectAddr,
		Credential: credAddr,
	})
	return nil
}

// GetProject returns a snapshot of a project record.
func (e *Engine) GetProject(addr domain.Address) (domain.Project, error) {
	return e.store.GetProject(addr)
}

// GetCredential returns a snapshot of a credential record.
func (e *Engine) GetCredential(addr domain.Address) (domain.Credential, error) {
	return e.store.GetCredential(addr)
}

// GetUsage returns a snapshot of a credential's usage counter.
func (e *Engine) GetUsage(credAddr domain.Address) (domain.UsageCounter, error) {
	return e.store.GetUsage(domain.UsageAddress(credAddr))
}

// requireOwner validates the credential's back-reference against its derived
// address and checks the caller against the parent project's owner.
// Back-references are never trusted as bare data.
func (e *Engine) requireOwner(c *domain.Credential, credAddr domain.Address, owner domain.Identity) error {
	if domain.CredentialAddress(c.ProjectRef, c.Index) != credAddr {
		return domain.ErrKeyProjectMismatch
	}
	return e.store.ViewProject(c.ProjectRef, func(p *domain.Project) error {
		if p.Owner != owner {
			return domain.ErrUnauthorized
		}
		return nil
	})
}

func (e *Engine) adjustActive(projectAddr domain.Address, delta int) error {
	return e.store.UpdateProject(projectAddr, func(p *domain.Project) error {
		if delta > 0 {
			p.ActiveCredentials++
		} else if p.ActiveCredentials > 0 {
			p.ActiveCredentials--
		}
		return nil
	})
}
