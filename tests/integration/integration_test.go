//go:build integration

// Package integration provides integration tests that run against a live
// keygated server.
//
// Run with: go test -tags=integration ./tests/integration/...
// Requires: keygated listening on BASE_URL (default http://localhost:8080).
package integration

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestIdentity is an arbitrary 32-byte caller identity.
const TestIdentity = "1111111111111111111111111111111111111111111111111111111111111111"

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server to be ready
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(30 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				os.Exit(m.Run())
			}
		}
		time.Sleep(500 * time.Millisecond)
	}

	println("Server not ready at", baseURL)
	os.Exit(1)
}

func doJSON(t *testing.T, method, path, identity string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, baseURL+path, body)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("X-Identity", identity)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var result map[string]any
	json.NewDecoder(resp.Body).Decode(&result)
	return resp, result
}

func hashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

func TestHealth(t *testing.T) {
	resp, body := doJSON(t, "GET", "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestCreateProject_Unauthorized(t *testing.T) {
	resp, _ := doJSON(t, "POST", "/api/v1/projects", "", map[string]any{
		"name":               "no-identity",
		"default_rate_limit": 10,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestFullLifecycle(t *testing.T) {
	// Create project
	resp, project := doJSON(t, "POST", "/api/v1/projects", TestIdentity, map[string]any{
		"name":               fmt.Sprintf("integration-%d", time.Now().UnixNano()),
		"default_rate_limit": 1000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d: %v", resp.StatusCode, project)
	}
	projectAddr := project["address"].(string)

	// Issue credential at index 0
	secret := fmt.Sprintf("kg_%032d", time.Now().UnixNano()%1e9)
	resp, cred := doJSON(t, "POST", "/api/v1/projects/"+projectAddr+"/credentials", TestIdentity, map[string]any{
		"index":       0,
		"name":        "integration-key",
		"secret_hash": hashSecret(secret),
		"scopes":      []string{"read", "write"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue: expected 201, got %d: %v", resp.StatusCode, cred)
	}
	credAddr := cred["address"].(string)
	if cred["status"] != "active" {
		t.Errorf("expected active, got %v", cred["status"])
	}

	// Verify with the right hash
	resp, verify := doJSON(t, "POST", "/api/v1/credentials/"+credAddr+"/verify", "", map[string]any{
		"secret_hash":     hashSecret(secret),
		"required_scopes": []string{"read"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %v", resp.StatusCode, verify)
	}
	if verify["verified"] != true {
		t.Errorf("expected verified, got %v", verify)
	}

	// Wrong hash is rejected
	resp, _ = doJSON(t, "POST", "/api/v1/credentials/"+credAddr+"/verify", "", map[string]any{
		"secret_hash": hashSecret("kg_wrongwrongwrongwrongwrongwrong12"),
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong hash: expected 401, got %d", resp.StatusCode)
	}

	// Suspend blocks verification
	resp, _ = doJSON(t, "POST", "/api/v1/credentials/"+credAddr+"/suspend", TestIdentity, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("suspend: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "POST", "/api/v1/credentials/"+credAddr+"/verify", "", map[string]any{
		"secret_hash": hashSecret(secret),
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("verify suspended: expected 409, got %d", resp.StatusCode)
	}

	// Reactivate and rotate
	resp, _ = doJSON(t, "POST", "/api/v1/credentials/"+credAddr+"/reactivate", TestIdentity, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reactivate: expected 200, got %d", resp.StatusCode)
	}
	newSecret := secret[:len(secret)-1] + "X"
	resp, _ = doJSON(t, "POST", "/api/v1/credentials/"+credAddr+"/rotate", TestIdentity, map[string]any{
		"secret_hash": hashSecret(newSecret),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "POST", "/api/v1/credentials/"+credAddr+"/verify", "", map[string]any{
		"secret_hash": hashSecret(newSecret),
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("verify after rotate: expected 200, got %d", resp.StatusCode)
	}

	// Teardown: usage, credential, project, in that order
	resp, _ = doJSON(t, "DELETE", "/api/v1/credentials/"+credAddr+"/usage", TestIdentity, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close usage: expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "DELETE", "/api/v1/credentials/"+credAddr, TestIdentity, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close credential: expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "DELETE", "/api/v1/projects/"+projectAddr, TestIdentity, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close project: expected 204, got %d", resp.StatusCode)
	}
}

func TestWebSocketTail(t *testing.T) {
	resp, health := doJSON(t, "GET", "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatal("health check failed")
	}
	if health["events"] != "connected" {
		t.Skip("events disabled on this server")
	}

	wsURL := strings.Replace(baseURL, "http://", "ws://", 1)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?type=project.created", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Trigger an event
	resp, project := doJSON(t, "POST", "/api/v1/projects", TestIdentity, map[string]any{
		"name":               fmt.Sprintf("ws-test-%d", time.Now().UnixNano()),
		"default_rate_limit": 10,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d", resp.StatusCode)
	}
	defer doJSON(t, "DELETE", "/api/v1/projects/"+project["address"].(string), TestIdentity, nil)

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event["type"] != "project.created" {
		t.Errorf("expected project.created, got %v", event["type"])
	}
	id, _ := event["id"].(string)
	if !strings.HasPrefix(id, "evt_") {
		t.Errorf("expected id to start with evt_, got %s", id)
	}
}
