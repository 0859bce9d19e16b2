package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateProjectSendsIdentity(t *testing.T) {
	var gotIdentity string
	var gotBody CreateProjectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = r.Header.Get("X-Identity")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Project{Address: "aa", Name: gotBody.Name})
	}))
	defer srv.Close()

	c := New("deadbeef", WithServer(srv.URL))
	p, err := c.CreateProject(CreateProjectRequest{Name: "api", DefaultRateLimit: 100})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if gotIdentity != "deadbeef" {
		t.Errorf("X-Identity = %q, want deadbeef", gotIdentity)
	}
	if gotBody.DefaultRateLimit != 100 || p.Address != "aa" {
		t.Errorf("unexpected round trip: body %+v, resp %+v", gotBody, p)
	}
}

func TestVerifyRateLimitedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	}))
	defer srv.Close()

	c := New("", WithServer(srv.URL))
	_, err := c.Verify("aa", VerifyRequest{SecretHash: "00"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if !apiErr.RateLimited() {
		t.Errorf("RateLimited() = false for status %d", apiErr.StatusCode)
	}
	if apiErr.Message != "rate limit exceeded" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestConnectionError(t *testing.T) {
	c := New("", WithServer("http://127.0.0.1:1"))
	_, err := c.Health()
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error type = %T, want *ConnectionError", err)
	}
}

func TestNoContentResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New("deadbeef", WithServer(srv.URL))
	if err := c.CloseCredential("aa"); err != nil {
		t.Errorf("CloseCredential: %v", err)
	}
	if err := c.CloseProject("bb"); err != nil {
		t.Errorf("CloseProject: %v", err)
	}
}
