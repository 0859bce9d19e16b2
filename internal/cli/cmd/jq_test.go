package cmd

import (
	"encoding/json"
	"testing"
)

func TestMatchesJqFilter(t *testing.T) {
	data := json.RawMessage(`{"project":"abc","request_count":5}`)

	tests := []struct {
		name   string
		filter string
		want   bool
	}{
		{"boolean true", `.project == "abc"`, true},
		{"boolean false", `.project == "xyz"`, false},
		{"numeric comparison", `.request_count > 3`, true},
		{"select style match", `select(.request_count >= 5)`, true},
		{"select style no match", `select(.request_count > 100)`, false},
		{"missing field", `.nonexistent == "x"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := compileJqFilter(tt.filter)
			if err != nil {
				t.Fatalf("compile %q: %v", tt.filter, err)
			}
			if got := matchesJqFilter(code, data); got != tt.want {
				t.Errorf("matchesJqFilter(%q) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestMatchesJqFilterNilCode(t *testing.T) {
	if !matchesJqFilter(nil, json.RawMessage(`{}`)) {
		t.Error("nil filter should match everything")
	}
}

func TestCompileJqFilterInvalid(t *testing.T) {
	if _, err := compileJqFilter("((("); err == nil {
		t.Error("expected parse error for invalid filter")
	}
}
