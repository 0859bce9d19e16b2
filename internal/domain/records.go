package domain

// Record size limits. Names and descriptions are validated at creation so
// record byte sizes stay fixed; nothing grows after allocation.
const (
	MaxNameLen        = 64
	MaxDescriptionLen = 128

	// MaxCredentialsPerProject caps the sequential index space of a project.
	MaxCredentialsPerProject = 100

	// FailedVerificationLimit is the consecutive hash-mismatch count at which
	// a credential is automatically revoked.
	FailedVerificationLimit = 10

	// DefaultWindowSlots is the fixed rate window, ~24h at 400ms per slot.
	DefaultWindowSlots = 216_000
)

// Status is the lifecycle state of a credential. Revoked is terminal.
type Status uint8

const (
	StatusActive Status = iota
	StatusSuspended
	StatusRevoked
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status as its lowercase name.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Project is an owner-scoped namespace for credentials.
type Project struct {
	Owner             Identity
	NamespaceID       NamespaceID
	Name              string
	Description       string
	DefaultRateLimit  uint32
	TotalCredentials  uint16
	ActiveCredentials uint16
	CreatedAt         uint64
}

// Credential is one issued API key. The raw secret never enters the engine;
// only its SHA-256 hash is stored.
type Credential struct {
	ProjectRef          Address
	Index               uint16
	Name                string
	SecretHash          Hash
	Scopes              uint64
	Status              Status
	RateLimit           uint32
	ExpiresAt           *uint64
	CreatedAt           uint64
	LastVerifiedAt      *uint64
	TotalVerifications  uint64
	FailedVerifications uint8
}

// Expired reports whether the credential's deadline has passed at the given
// slot. Credentials without a deadline never expire.
func (c *Credential) Expired(now uint64) bool {
	return c.ExpiresAt != nil && now >= *c.ExpiresAt
}

// UsageCounter is the hot-path fixed-window counter paired with exactly one
// credential. It is mutated only by verification and closed independently
// for storage reclamation.
type UsageCounter struct {
	CredentialRef Address
	WindowStart   uint64
	RequestCount  uint32
	LastUsedAt    uint64
}
