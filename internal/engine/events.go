package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/filipexyz/keygate/internal/domain"
)

// Every state change the engine commits is announced as an event. Emission
// is observational: a failing emitter never fails the operation.

// Event is the envelope published for each committed state change.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Slot uint64          `json:"slot"`
	Data json.RawMessage `json:"data"`
}

// Emitter is the event sink. The NATS publisher in internal/events is the
// production implementation.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, Event) error { return nil }

// Event types.
const (
	EventProjectCreated          = "project.created"
	EventProjectOwnerTransferred = "project.owner_transferred"
	EventProjectClosed           = "project.closed"
	EventCredentialIssued        = "credential.issued"
	EventCredentialVerified      = "credential.verified"
	EventCredentialRotated       = "credential.rotated"
	EventScopesUpdated           = "credential.scopes_updated"
	EventRateLimitUpdated        = "credential.rate_limit_updated"
	EventCredentialSuspended     = "credential.suspended"
	EventCredentialReactivated   = "credential.reactivated"
	EventCredentialRevoked       = "credential.revoked"
	EventCredentialAutoRevoked   = "credential.auto_revoked"
	EventCredentialClosed        = "credential.closed"
	EventUsageCounterClosed      = "usage.closed"
)

type ProjectCreatedEvent struct {
	Project     domain.Address     `json:"project"`
	Owner       domain.Identity    `json:"owner"`
	NamespaceID domain.NamespaceID `json:"namespace_id"`
	Name        string             `json:"name"`
}

type ProjectOwnerTransferredEvent struct {
	Project  domain.Address  `json:"project"`
	OldOwner domain.Identity `json:"old_owner"`
	NewOwner domain.Identity `json:"new_owner"`
}

type ProjectClosedEvent struct {
	Project domain.Address `json:"project"`
}

type CredentialIssuedEvent struct {
	Project    domain.Address `json:"project"`
	Credential domain.Address `json:"credential"`
	Index      uint16         `json:"index"`
	Name       string         `json:"name"`
	Scopes     uint64         `json:"scopes"`
	ExpiresAt  *uint64        `json:"expires_at,omitempty"`
}

type CredentialVerifiedEvent struct {
	Project      domain.Address `json:"project"`
	Credential   domain.Address `json:"credential"`
	RequestCount uint32         `json:"request_count"`
}

type CredentialRotatedEvent struct {
	Project    domain.Address `json:"project"`
	Credential domain.Address `json:"credential"`
}

type ScopesUpdatedEvent struct {
	Credential domain.Address `json:"credential"`
	OldScopes  uint64         `json:"old_scopes"`
	NewScopes  uint64         `json:"new_scopes"`
}

type RateLimitUpdatedEvent struct {
	Credential domain.Address `json:"credential"`
	RateLimit  uint32         `json:"rate_limit"`
}

type CredentialStatusEvent struct {
	Project    domain.Address `json:"project"`
	Credential domain.Address `json:"credential"`
}

type CredentialAutoRevokedEvent struct {
	Project    domain.Address `json:"project"`
	Credential domain.Address `json:"credential"`
	Reason     string         `json:"reason"`
}

type CredentialClosedEvent struct {
	Project    domain.Address `json:"project"`
	Credential domain.Address `json:"credential"`
}

type UsageCounterClosedEvent struct {
	Credential domain.Address `json:"credential"`
}

// generateEventID creates a unique event ID with "evt_" prefix.
func generateEventID() string {
	b := make([]byte, 12)
	rand.Read(b)
	return "evt_" + hex.EncodeToString(b)
}

func (e *Engine) emit(ctx context.Context, eventType string, slot uint64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("marshal event", "type", eventType, "error", err)
		return
	}
	ev := Event{ID: generateEventID(), Type: eventType, Slot: slot, Data: data}
	if err := e.emitter.Emit(ctx, ev); err != nil {
		e.logger.Warn("emit event", "type", eventType, "error", err)
	}
}
