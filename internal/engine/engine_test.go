package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/filipexyz/keygate/internal/domain"
	"github.com/filipexyz/keygate/internal/scope"
	"github.com/filipexyz/keygate/internal/store"
)

var (
	testOwner = domain.Identity{0xaa}
	otherID   = domain.Identity{0xbb}
	testNS    = domain.NamespaceID{1, 2, 3}
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *domain.ManualClock) {
	t.Helper()
	clock := &domain.ManualClock{}
	clock.Set(1000)
	return New(store.New(), clock, opts...), clock
}

func createProject(t *testing.T, e *Engine) domain.Address {
	t.Helper()
	addr, err := e.CreateProject(context.Background(), testOwner, testNS, "test project", "", 100)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return addr
}

func issueCredential(t *testing.T, e *Engine, projectAddr domain.Address, index uint16, hash domain.Hash, scopes uint64) domain.Address {
	t.Helper()
	addr, err := e.IssueCredential(context.Background(), testOwner, projectAddr, index, "key", hash, scopes, nil, nil)
	if err != nil {
		t.Fatalf("issue credential %d: %v", index, err)
	}
	return addr
}

func TestCreateProjectValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}

	if _, err := e.CreateProject(ctx, testOwner, testNS, "p", "", 0); !errors.Is(err, domain.ErrInvalidRateLimit) {
		t.Errorf("zero rate limit: got %v", err)
	}
	if _, err := e.CreateProject(ctx, testOwner, testNS, string(long[:65]), "", 10); !errors.Is(err, domain.ErrNameTooLong) {
		t.Errorf("long name: got %v", err)
	}
	if _, err := e.CreateProject(ctx, testOwner, testNS, "p", string(long[:129]), 10); !errors.Is(err, domain.ErrDescriptionTooLong) {
		t.Errorf("long description: got %v", err)
	}

	if _, err := e.CreateProject(ctx, testOwner, testNS, "p", "", 10); err != nil {
		t.Fatalf("valid create: %v", err)
	}
	if _, err := e.CreateProject(ctx, testOwner, testNS, "p", "", 10); !errors.Is(err, domain.ErrRecordExists) {
		t.Errorf("duplicate namespace: got %v", err)
	}
}

func TestIssueCredentialIndexDiscipline(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()

	// Index must equal total_credentials exactly: no gaps, no reuse.
	if _, err := e.IssueCredential(ctx, testOwner, proj, 1, "k", hash, 0, nil, nil); !errors.Is(err, domain.ErrInvalidKeyIndex) {
		t.Errorf("gap index: got %v", err)
	}
	issueCredential(t, e, proj, 0, hash, 0)
	if _, err := e.IssueCredential(ctx, testOwner, proj, 0, "k", hash, 0, nil, nil); !errors.Is(err, domain.ErrInvalidKeyIndex) {
		t.Errorf("reused index: got %v", err)
	}

	p, err := e.GetProject(proj)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalCredentials != 1 || p.ActiveCredentials != 1 {
		t.Errorf("counters = %d/%d, want 1/1", p.TotalCredentials, p.ActiveCredentials)
	}
}

func TestIssueCredentialAuthorization(t *testing.T) {
	e, _ := newTestEngine(t)
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()

	if _, err := e.IssueCredential(context.Background(), otherID, proj, 0, "k", hash, 0, nil, nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestIssueCredentialExpiryValidation(t *testing.T) {
	e, clock := newTestEngine(t)
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()

	past := clock.Slot()
	if _, err := e.IssueCredential(context.Background(), testOwner, proj, 0, "k", hash, 0, &past, nil); !errors.Is(err, domain.ErrExpiryInPast) {
		t.Errorf("got %v, want ErrExpiryInPast", err)
	}
}

func TestVerifySuccess(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, scope.Read|scope.Write)

	res, err := e.Verify(ctx, cred, hash, scope.Read)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.RequestCount != 1 {
		t.Errorf("request_count = %d, want 1", res.RequestCount)
	}
	if res.TotalVerifications != 1 {
		t.Errorf("total_verifications = %d, want 1", res.TotalVerifications)
	}

	c, err := e.GetCredential(cred)
	if err != nil {
		t.Fatal(err)
	}
	if c.FailedVerifications != 0 {
		t.Errorf("failed_verifications = %d after success, want 0", c.FailedVerifications)
	}
	if c.LastVerifiedAt == nil || *c.LastVerifiedAt != clock.Slot() {
		t.Error("last_verified_at not set to current slot")
	}
}

func TestVerifyMismatchResetOnSuccess(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	_, wrong := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	for i := 0; i < 5; i++ {
		if _, err := e.Verify(ctx, cred, wrong, 0); !errors.Is(err, domain.ErrInvalidKey) {
			t.Fatalf("mismatch %d: got %v", i, err)
		}
	}
	c, _ := e.GetCredential(cred)
	if c.FailedVerifications != 5 {
		t.Fatalf("failed_verifications = %d, want 5", c.FailedVerifications)
	}

	if _, err := e.Verify(ctx, cred, hash, 0); err != nil {
		t.Fatalf("verify with correct hash: %v", err)
	}
	c, _ = e.GetCredential(cred)
	if c.FailedVerifications != 0 {
		t.Errorf("failed_verifications = %d after success, want 0", c.FailedVerifications)
	}
}

func TestBruteForceAutoRevocation(t *testing.T) {
	em := &recordingEmitter{}
	e, _ := newTestEngine(t, WithEmitter(em))
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	_, wrong := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	for i := 0; i < domain.FailedVerificationLimit; i++ {
		if _, err := e.Verify(ctx, cred, wrong, 0); !errors.Is(err, domain.ErrInvalidKey) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	c, _ := e.GetCredential(cred)
	if c.Status != domain.StatusRevoked {
		t.Fatalf("status = %s after %d mismatches, want revoked", c.Status, domain.FailedVerificationLimit)
	}
	p, _ := e.GetProject(proj)
	if p.ActiveCredentials != 0 {
		t.Errorf("active_credentials = %d, want 0", p.ActiveCredentials)
	}

	// The correct hash no longer helps. Revoked is terminal.
	if _, err := e.Verify(ctx, cred, hash, 0); !errors.Is(err, domain.ErrKeyNotActive) {
		t.Errorf("post-revocation verify: got %v, want ErrKeyNotActive", err)
	}
	if err := e.ReactivateCredential(ctx, testOwner, cred); !errors.Is(err, domain.ErrKeyNotSuspended) {
		t.Errorf("reactivate revoked: got %v", err)
	}

	found := false
	for _, typ := range em.types() {
		if typ == EventCredentialAutoRevoked {
			found = true
		}
	}
	if !found {
		t.Error("auto-revocation event not emitted")
	}
}

func TestRateLimitBoundary(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	limit := uint32(3)
	cred, err := e.IssueCredential(ctx, testOwner, proj, 0, "k", hash, 0, nil, &limit)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := e.Verify(ctx, cred, hash, 0); err != nil {
			t.Fatalf("verify %d: %v", i, err)
		}
	}
	if _, err := e.Verify(ctx, cred, hash, 0); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("fourth verify: got %v, want ErrRateLimitExceeded", err)
	}

	// A denied attempt advances nothing further.
	u, err := e.GetUsage(cred)
	if err != nil {
		t.Fatal(err)
	}
	if u.RequestCount != 3 {
		t.Errorf("request_count = %d, want 3", u.RequestCount)
	}

	// The window resets lazily once its duration elapses.
	clock.Advance(domain.DefaultWindowSlots)
	if _, err := e.Verify(ctx, cred, hash, 0); err != nil {
		t.Fatalf("verify after window: %v", err)
	}
	u, _ = e.GetUsage(cred)
	if u.RequestCount != 1 {
		t.Errorf("request_count after reset = %d, want 1", u.RequestCount)
	}
}

func TestRateCounterAdvancesOnHashMismatch(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	_, wrong := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	if _, err := e.Verify(ctx, cred, wrong, 0); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatal(err)
	}
	u, _ := e.GetUsage(cred)
	if u.RequestCount != 1 {
		t.Errorf("request_count = %d after failed attempt, want 1", u.RequestCount)
	}
}

func TestScopeFailureIsPureRejection(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, scope.Read|scope.Write)

	if _, err := e.Verify(ctx, cred, hash, scope.Admin); !errors.Is(err, domain.ErrInsufficientScope) {
		t.Fatalf("got %v, want ErrInsufficientScope", err)
	}

	c, _ := e.GetCredential(cred)
	if c.FailedVerifications != 0 {
		t.Errorf("scope failure advanced failed_verifications: %d", c.FailedVerifications)
	}
	if c.TotalVerifications != 0 {
		t.Errorf("scope failure advanced total_verifications: %d", c.TotalVerifications)
	}
	if c.LastVerifiedAt != nil {
		t.Error("scope failure advanced last_verified_at")
	}
	// Only the rate counter moved.
	u, _ := e.GetUsage(cred)
	if u.RequestCount != 1 {
		t.Errorf("request_count = %d, want 1", u.RequestCount)
	}
}

func TestVerifyExpiry(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	exp := clock.Slot() + 10
	cred, err := e.IssueCredential(ctx, testOwner, proj, 0, "k", hash, 0, &exp, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Verify(ctx, cred, hash, 0); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}
	clock.Advance(10)
	if _, err := e.Verify(ctx, cred, hash, 0); !errors.Is(err, domain.ErrKeyExpired) {
		t.Fatalf("verify at deadline: got %v, want ErrKeyExpired", err)
	}
}

func TestLifecycleWalk(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	if err := e.SuspendCredential(ctx, testOwner, cred); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if p, _ := e.GetProject(proj); p.ActiveCredentials != 0 {
		t.Errorf("active = %d after suspend, want 0", p.ActiveCredentials)
	}
	if _, err := e.Verify(ctx, cred, hash, 0); !errors.Is(err, domain.ErrKeyNotActive) {
		t.Fatalf("verify suspended: got %v", err)
	}
	if err := e.SuspendCredential(ctx, testOwner, cred); !errors.Is(err, domain.ErrKeyNotActive) {
		t.Errorf("double suspend: got %v", err)
	}

	if err := e.ReactivateCredential(ctx, testOwner, cred); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if p, _ := e.GetProject(proj); p.ActiveCredentials != 1 {
		t.Errorf("active = %d after reactivate, want 1", p.ActiveCredentials)
	}
	if _, err := e.Verify(ctx, cred, hash, 0); err != nil {
		t.Fatalf("verify reactivated: %v", err)
	}

	if err := e.RevokeCredential(ctx, testOwner, cred); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := e.Verify(ctx, cred, hash, 0); !errors.Is(err, domain.ErrKeyNotActive) {
		t.Fatalf("verify revoked: got %v", err)
	}
	if err := e.RevokeCredential(ctx, testOwner, cred); !errors.Is(err, domain.ErrKeyNotActive) {
		t.Errorf("double revoke: got %v", err)
	}
}

func TestRevokeFromSuspended(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	if err := e.SuspendCredential(ctx, testOwner, cred); err != nil {
		t.Fatal(err)
	}
	if err := e.RevokeCredential(ctx, testOwner, cred); err != nil {
		t.Fatalf("revoke suspended: %v", err)
	}
	// Suspend already decremented; revoking a suspended key must not again.
	if p, _ := e.GetProject(proj); p.ActiveCredentials != 0 {
		t.Errorf("active = %d, want 0", p.ActiveCredentials)
	}
}

func TestRotationAtomicity(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, oldHash := domain.GenerateSecret()
	_, newHash := domain.GenerateSecret()
	_, wrong := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, oldHash, 0)

	// Accumulate some counter state that rotation must reset.
	if _, err := e.Verify(ctx, cred, oldHash, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Verify(ctx, cred, wrong, 0); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatal(err)
	}

	if err := e.RotateCredential(ctx, testOwner, cred, newHash, nil); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := e.Verify(ctx, cred, oldHash, 0); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatalf("old hash after rotation: got %v, want ErrInvalidKey", err)
	}
	if _, err := e.Verify(ctx, cred, newHash, 0); err != nil {
		t.Fatalf("new hash after rotation: %v", err)
	}

	c, _ := e.GetCredential(cred)
	if c.TotalVerifications != 1 {
		// 1 from the post-rotation verify; rotation itself reset to 0.
		t.Errorf("total_verifications = %d, want 1", c.TotalVerifications)
	}
}

func TestRotateRequiresActive(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	if err := e.SuspendCredential(ctx, testOwner, cred); err != nil {
		t.Fatal(err)
	}
	if err := e.RotateCredential(ctx, testOwner, cred, hash, nil); !errors.Is(err, domain.ErrKeyNotActive) {
		t.Errorf("got %v, want ErrKeyNotActive", err)
	}
}

func TestUpdateScopesAndRateLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, scope.Read)

	if _, err := e.Verify(ctx, cred, hash, scope.Admin); !errors.Is(err, domain.ErrInsufficientScope) {
		t.Fatal(err)
	}
	if err := e.UpdateScopes(ctx, testOwner, cred, scope.Read|scope.Admin); err != nil {
		t.Fatalf("update scopes: %v", err)
	}
	if _, err := e.Verify(ctx, cred, hash, scope.Admin); err != nil {
		t.Fatalf("verify after scope grant: %v", err)
	}

	if err := e.UpdateRateLimit(ctx, testOwner, cred, 0); !errors.Is(err, domain.ErrInvalidRateLimit) {
		t.Errorf("zero limit: got %v", err)
	}
	if err := e.UpdateRateLimit(ctx, testOwner, cred, 2); err != nil {
		t.Fatalf("update rate limit: %v", err)
	}
	// Two requests used so far in this window; the lowered limit binds now.
	if _, err := e.Verify(ctx, cred, hash, 0); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Errorf("got %v, want ErrRateLimitExceeded", err)
	}
}

func TestOwnerOnlyOperations(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	checks := map[string]error{
		"rotate":      e.RotateCredential(ctx, otherID, cred, hash, nil),
		"scopes":      e.UpdateScopes(ctx, otherID, cred, 1),
		"rate limit":  e.UpdateRateLimit(ctx, otherID, cred, 5),
		"suspend":     e.SuspendCredential(ctx, otherID, cred),
		"revoke":      e.RevokeCredential(ctx, otherID, cred),
		"close usage": e.CloseUsageCounter(ctx, otherID, cred),
		"transfer":    e.TransferProjectOwner(ctx, otherID, proj, otherID),
		"close":       e.CloseProject(ctx, otherID, proj),
	}
	for name, err := range checks {
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("%s by non-owner: got %v, want ErrUnauthorized", name, err)
		}
	}
	// But anyone may verify.
	if _, err := e.Verify(ctx, cred, hash, 0); err != nil {
		t.Errorf("verify by third party: %v", err)
	}
}

func TestTransferProjectOwner(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)

	if err := e.TransferProjectOwner(ctx, testOwner, proj, otherID); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	_, hash := domain.GenerateSecret()
	if _, err := e.IssueCredential(ctx, testOwner, proj, 0, "k", hash, 0, nil, nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("old owner issue: got %v", err)
	}
	if _, err := e.IssueCredential(ctx, otherID, proj, 0, "k", hash, 0, nil, nil); err != nil {
		t.Errorf("new owner issue: %v", err)
	}
}

func TestClosureOrdering(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	if err := e.CloseProject(ctx, testOwner, proj); !errors.Is(err, domain.ErrProjectHasKeys) {
		t.Fatalf("close project with keys: got %v", err)
	}
	if err := e.CloseCredential(ctx, testOwner, cred); !errors.Is(err, domain.ErrUsageCounterOpen) {
		t.Fatalf("close credential with usage: got %v", err)
	}

	if err := e.CloseUsageCounter(ctx, testOwner, cred); err != nil {
		t.Fatalf("close usage: %v", err)
	}
	if _, err := e.Verify(ctx, cred, hash, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("verify without usage counter: got %v", err)
	}
	if err := e.CloseCredential(ctx, testOwner, cred); err != nil {
		t.Fatalf("close credential: %v", err)
	}

	p, _ := e.GetProject(proj)
	if p.TotalCredentials != 0 || p.ActiveCredentials != 0 {
		t.Errorf("counters = %d/%d after closure, want 0/0", p.TotalCredentials, p.ActiveCredentials)
	}
	if err := e.CloseProject(ctx, testOwner, proj); err != nil {
		t.Fatalf("close project: %v", err)
	}
	if _, err := e.GetProject(proj); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("project should be gone: %v", err)
	}
}

func TestCloseRevokedCredentialCounters(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	cred := issueCredential(t, e, proj, 0, hash, 0)

	if err := e.RevokeCredential(ctx, testOwner, cred); err != nil {
		t.Fatal(err)
	}
	if err := e.CloseUsageCounter(ctx, testOwner, cred); err != nil {
		t.Fatal(err)
	}
	if err := e.CloseCredential(ctx, testOwner, cred); err != nil {
		t.Fatal(err)
	}

	p, _ := e.GetProject(proj)
	// Revocation already took the active slot; closure must not double-count.
	if p.TotalCredentials != 0 || p.ActiveCredentials != 0 {
		t.Errorf("counters = %d/%d, want 0/0", p.TotalCredentials, p.ActiveCredentials)
	}
}

func TestConcurrentVerifyDistinctCredentials(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)

	const n = 8
	hashes := make([]domain.Hash, n)
	creds := make([]domain.Address, n)
	for i := 0; i < n; i++ {
		_, hashes[i] = domain.GenerateSecret()
		creds[i] = issueCredential(t, e, proj, uint16(i), hashes[i], 0)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*10)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := e.Verify(ctx, creds[i], hashes[i], 0); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent verify: %v", err)
	}

	for i := 0; i < n; i++ {
		c, _ := e.GetCredential(creds[i])
		if c.TotalVerifications != 10 {
			t.Errorf("credential %d: total_verifications = %d, want 10", i, c.TotalVerifications)
		}
	}
}

func TestConcurrentVerifySameCredentialRespectsLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()
	limit := uint32(5)
	cred, err := e.IssueCredential(ctx, testOwner, proj, 0, "k", hash, 0, nil, &limit)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var ok, limited int32
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Verify(ctx, cred, hash, 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrRateLimitExceeded):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 5 || limited != 15 {
		t.Errorf("ok=%d limited=%d, want 5/15", ok, limited)
	}
	u, _ := e.GetUsage(cred)
	if u.RequestCount > limit {
		t.Errorf("request_count %d exceeds limit %d", u.RequestCount, limit)
	}
}

func TestMaxCredentialsPerProject(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	proj := createProject(t, e)
	_, hash := domain.GenerateSecret()

	for i := 0; i < domain.MaxCredentialsPerProject; i++ {
		issueCredential(t, e, proj, uint16(i), hash, 0)
	}
	if _, err := e.IssueCredential(ctx, testOwner, proj, domain.MaxCredentialsPerProject, "k", hash, 0, nil, nil); !errors.Is(err, domain.ErrMaxKeysReached) {
		t.Errorf("got %v, want ErrMaxKeysReached", err)
	}
}
