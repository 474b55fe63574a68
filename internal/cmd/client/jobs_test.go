package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJobsEnqueueCommand(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/jobs/enqueue" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"job": map[string]any{"id": "j1"}, "deduped": false})
	}))
	defer srv.Close()

	cmd := NewJobsCommand(func() string { return srv.URL })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"enqueue", "--type", "outbound-posting", "--payload", `{"voucherNo":"V-1"}`, "--key", "V-1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got["type"] != "outbound-posting" || got["idempotencyKey"] != "V-1" {
		t.Errorf("request body = %v", got)
	}
	if !strings.Contains(out.String(), "j1") {
		t.Errorf("output = %s", out.String())
	}
}

func TestJobsListRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown status"})
	}))
	defer srv.Close()

	cmd := NewJobsCommand(func() string { return srv.URL })
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"list", "--status", "bogus"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunsTriggerSendsToken(t *testing.T) {
	t.Setenv("JOBQ_RUN_TOKEN", "tok-1")
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Jobq-Run-Token")
		_ = json.NewEncoder(w).Encode(map[string]any{"runId": "r1", "processed": 0})
	}))
	defer srv.Close()

	cmd := NewRunsCommand(func() string { return srv.URL })
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"trigger"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotToken != "tok-1" {
		t.Errorf("token header = %q", gotToken)
	}
}
