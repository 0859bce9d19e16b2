package client

// Credential mirrors the credential resource.
type Credential struct {
	Address             string   `json:"address"`
	Project             string   `json:"project"`
	Index               uint16   `json:"index"`
	Name                string   `json:"name"`
	Scopes              []string `json:"scopes"`
	ScopeMask           uint64   `json:"scope_mask"`
	Status              string   `json:"status"`
	RateLimit           uint32   `json:"rate_limit"`
	ExpiresAt           *uint64  `json:"expires_at,omitempty"`
	CreatedAt           uint64   `json:"created_at"`
	LastVerifiedAt      *uint64  `json:"last_verified_at,omitempty"`
	TotalVerifications  uint64   `json:"total_verifications"`
	FailedVerifications uint8    `json:"failed_verifications"`
}

// Usage mirrors a credential's rate-window counter.
type Usage struct {
	Credential   string `json:"credential"`
	WindowStart  uint64 `json:"window_start"`
	RequestCount uint32 `json:"request_count"`
	LastUsedAt   uint64 `json:"last_used_at"`
}

// IssueCredentialRequest issues a credential under a project. Index must be
// the project's current credential count. SecretHash is the 64-char hex
// SHA-256 of the secret; the raw secret never goes over the wire.
type IssueCredentialRequest struct {
	Index      uint16   `json:"index"`
	Name       string   `json:"name"`
	SecretHash string   `json:"secret_hash"`
	Scopes     []string `json:"scopes,omitempty"`
	ScopeMask  *uint64  `json:"scope_mask,omitempty"`
	ExpiresAt  *uint64  `json:"expires_at,omitempty"`
	RateLimit  *uint32  `json:"rate_limit,omitempty"`
}

// IssueCredential issues a new credential under the given project.
func (c *Client) IssueCredential(project string, req IssueCredentialRequest) (*Credential, error) {
	var cred Credential
	if err := c.do("POST", "/api/v1/projects/"+project+"/credentials", req, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// GetCredential fetches a credential by address.
func (c *Client) GetCredential(address string) (*Credential, error) {
	var cred Credential
	if err := c.do("GET", "/api/v1/credentials/"+address, nil, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// GetUsage fetches a credential's usage counter.
func (c *Client) GetUsage(address string) (*Usage, error) {
	var u Usage
	if err := c.do("GET", "/api/v1/credentials/"+address+"/usage", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// VerifyRequest checks a presented secret hash against a credential.
type VerifyRequest struct {
	SecretHash     string   `json:"secret_hash"`
	RequiredScopes []string `json:"required_scopes,omitempty"`
	RequiredMask   *uint64  `json:"required_mask,omitempty"`
}

// VerifyResult reports a successful verification.
type VerifyResult struct {
	Verified           bool   `json:"verified"`
	Slot               uint64 `json:"slot"`
	RequestCount       uint32 `json:"request_count"`
	TotalVerifications uint64 `json:"total_verifications"`
}

// Verify checks a secret hash. Rejections come back as *APIError: 401 for a
// bad or expired key, 403 for missing scope, 409 for a non-active key, 429
// when the rate window is exhausted.
func (c *Client) Verify(address string, req VerifyRequest) (*VerifyResult, error) {
	var res VerifyResult
	if err := c.do("POST", "/api/v1/credentials/"+address+"/verify", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RotateRequest replaces a credential's secret hash.
type RotateRequest struct {
	SecretHash string  `json:"secret_hash"`
	ExpiresAt  *uint64 `json:"expires_at,omitempty"`
}

// RotateCredential atomically swaps the secret hash and resets counters.
func (c *Client) RotateCredential(address string, req RotateRequest) error {
	return c.do("POST", "/api/v1/credentials/"+address+"/rotate", req, nil)
}

// UpdateScopes replaces the credential's scopes.
func (c *Client) UpdateScopes(address string, scopes []string) error {
	return c.do("PUT", "/api/v1/credentials/"+address+"/scopes",
		map[string]interface{}{"scopes": scopes}, nil)
}

// UpdateScopeMask replaces the credential's scopes with a raw bitmask.
func (c *Client) UpdateScopeMask(address string, mask uint64) error {
	return c.do("PUT", "/api/v1/credentials/"+address+"/scopes",
		map[string]interface{}{"scope_mask": mask}, nil)
}

// UpdateRateLimit replaces the credential's per-window limit.
func (c *Client) UpdateRateLimit(address string, limit uint32) error {
	return c.do("PUT", "/api/v1/credentials/"+address+"/rate-limit",
		map[string]uint32{"rate_limit": limit}, nil)
}

// SuspendCredential pauses an active credential.
func (c *Client) SuspendCredential(address string) error {
	return c.do("POST", "/api/v1/credentials/"+address+"/suspend", nil, nil)
}

// ReactivateCredential resumes a suspended credential.
func (c *Client) ReactivateCredential(address string) error {
	return c.do("POST", "/api/v1/credentials/"+address+"/reactivate", nil, nil)
}

// RevokeCredential permanently revokes a credential.
func (c *Client) RevokeCredential(address string) error {
	return c.do("POST", "/api/v1/credentials/"+address+"/revoke", nil, nil)
}

// CloseUsage destroys the credential's usage counter. Must precede
// CloseCredential.
func (c *Client) CloseUsage(address string) error {
	return c.do("DELETE", "/api/v1/credentials/"+address+"/usage", nil, nil)
}

// CloseCredential destroys a credential record.
func (c *Client) CloseCredential(address string) error {
	return c.do("DELETE", "/api/v1/credentials/"+address, nil, nil)
}
