package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// BaseURLFunc resolves the server base URL at invocation time.
type BaseURLFunc func() string

// apiURLFromEnv returns the HTTP API base URL from JOBQ_HTTP or a default.
func apiURLFromEnv() string {
	if v := os.Getenv("JOBQ_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8464"
}

// authHeaders applies caller identity from the environment: JOBQ_RUN_TOKEN
// for the timer path, JOBQ_PRINCIPAL/JOBQ_ROLE for a user identity.
func authHeaders(req *http.Request) {
	if tok := os.Getenv("JOBQ_RUN_TOKEN"); tok != "" {
		req.Header.Set("X-Jobq-Run-Token", tok)
		return
	}
	if p := os.Getenv("JOBQ_PRINCIPAL"); p != "" {
		req.Header.Set("X-Jobq-Principal", p)
		req.Header.Set("X-Jobq-Role", os.Getenv("JOBQ_ROLE"))
	}
}

func doRequest(ctx context.Context, method, url string, body any) ([]byte, int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	authHeaders(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return out, resp.StatusCode, nil
}

// printJSON re-indents the server response for the terminal; non-JSON bodies
// are printed as-is.
func printJSON(w io.Writer, body []byte) {
	var buf bytes.Buffer
	if json.Indent(&buf, body, "", "  ") == nil {
		fmt.Fprintln(w, buf.String())
		return
	}
	fmt.Fprintln(w, string(body))
}

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server: %s (HTTP %d)", e.Error, status)
	}
	return fmt.Errorf("server: HTTP %d", status)
}
