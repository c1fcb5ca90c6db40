package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dispatch-cms/dispatch/internal/client"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
}

// Runner executes scenarios against a running server.
type Runner struct {
	api  *client.Client
	http *http.Client
}

// NewRunner creates a Runner for the server api talks to.
func NewRunner(api *client.Client) *Runner {
	return &Runner{
		api:  api,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run executes a single scenario and returns its result. Steps keep running
// after a failure so the result lists every broken step.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	start := time.Now()
	result := &Result{
		ScenarioName: s.Name,
		Passed:       true,
	}

	vars := map[string]string{"api_url": r.api.BaseURL(), "token": ""}

	// --- Setup phase ---
	if err := r.runSetup(ctx, &s.Setup, vars); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	// --- Steps phase ---
	for _, step := range s.Steps {
		sr := r.runStep(ctx, &step, vars)
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) runSetup(ctx context.Context, setup *Setup, vars map[string]string) error {
	if setup.Reset {
		if _, err := r.api.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if setup.State != "" {
		if _, err := r.api.Seed(ctx, setup.State); err != nil {
			return fmt.Errorf("state: %w", err)
		}
	}
	if setup.Login != nil {
		token, err := r.api.Login(ctx, setup.Login.Email, setup.Login.Password)
		if err != nil {
			return err
		}
		vars["token"] = token
	}
	return nil
}

// runStep executes a single scenario step and returns its result.
func (r *Runner) runStep(ctx context.Context, step *Step, vars map[string]string) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}
	fail := func(format string, args ...any) StepResult {
		sr.Error = fmt.Sprintf(format, args...)
		sr.Duration = time.Since(start)
		return sr
	}

	path, err := ExpandTemplates(step.Request.Path, vars)
	if err != nil {
		return fail("template expansion: %v", err)
	}
	body := step.Request.Body
	if body != "" {
		body, err = ExpandTemplates(body, vars)
		if err != nil {
			return fail("template expansion in body: %v", err)
		}
	}

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	method := step.Request.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, r.api.BaseURL()+path, reqBody)
	if err != nil {
		return fail("building request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if vars["token"] != "" {
		req.Header.Set("Authorization", "Token "+vars["token"])
	}
	for k, v := range step.Request.Headers {
		if v, err = ExpandTemplates(v, vars); err != nil {
			return fail("template expansion in header %s: %v", k, err)
		}
		req.Header.Set(k, v)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fail("request failed: %v", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail("reading response body: %v", err)
	}

	if step.Assert.Status != 0 && resp.StatusCode != step.Assert.Status {
		return fail("expected status %d, got %d", step.Assert.Status, resp.StatusCode)
	}
	if step.Assert.BodyContains != "" && !strings.Contains(string(respBody), step.Assert.BodyContains) {
		return fail("body does not contain %q", step.Assert.BodyContains)
	}

	if len(step.Assert.BodyJSON) == 0 && step.Assert.Count == nil && len(step.Capture) == 0 {
		sr.Passed = true
		sr.Duration = time.Since(start)
		return sr
	}

	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fail("body is not valid JSON: %v", err)
	}
	for key, expected := range step.Assert.BodyJSON {
		actual, ok := parsed[key]
		if !ok {
			return fail("body_json: key %q not found in response", key)
		}
		if actualStr := fmt.Sprintf("%v", actual); actualStr != expected {
			return fail("body_json: key %q expected %q, got %q", key, expected, actualStr)
		}
	}
	if step.Assert.Count != nil {
		results, ok := parsed["results"].([]any)
		if !ok {
			return fail("count: response has no results list")
		}
		if len(results) != *step.Assert.Count {
			return fail("count: expected %d results, got %d", *step.Assert.Count, len(results))
		}
	}
	for name, key := range step.Capture {
		v, ok := parsed[key]
		if !ok {
			return fail("capture: key %q not found in response", key)
		}
		vars[name] = fmt.Sprintf("%v", v)
	}

	sr.Passed = true
	sr.Duration = time.Since(start)
	return sr
}
