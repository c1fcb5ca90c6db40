package scenario

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dispatch-cms/dispatch/internal/api"
	"github.com/dispatch-cms/dispatch/internal/client"
	"github.com/dispatch-cms/dispatch/pkg/apicore"
)

const seedYAML = `
users:
  - email: editor@dispatch.test
    password: secret
entities:
  tags:
    - name: news
    - name: sports
`

const tagsScenario = `
name: tags round trip
setup:
  reset: true
  login:
    email: editor@dispatch.test
    password: secret
steps:
  - name: list seeded tags
    request:
      path: /api/tags/
    assert:
      status: 200
      count: 2
  - name: create tag
    request:
      method: POST
      path: /api/tags/
      body: '{"name": "weather"}'
    assert:
      status: 201
      body_json:
        name: weather
    capture:
      tag_id: id
  - name: fetch created tag
    request:
      path: /api/tags/{{tag_id}}/
    assert:
      status: 200
      body_contains: weather
  - name: search
    request:
      path: /api/tags/?q=weath
    assert:
      count: 1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setupRunner(t *testing.T) *Runner {
	t.Helper()
	app, err := api.NewApp(&apicore.Config{
		Name:     "dispatch-scenario-test",
		SeedFile: writeFile(t, t.TempDir(), "seed.yaml", seedYAML),
		TokenKey: "01234567890123456789012345678901",
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(app.Server.Router)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	return NewRunner(client.New(srv.URL, client.WithRateLimit(0, 0)))
}

func TestLoadScenarioYAML(t *testing.T) {
	s, err := LoadScenario(writeFile(t, t.TempDir(), "tags.yaml", tagsScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if s.Name != "tags round trip" || len(s.Steps) != 4 {
		t.Errorf("unexpected scenario: %+v", s)
	}
	if !s.Setup.Reset || s.Setup.Login == nil || s.Setup.Login.Email != "editor@dispatch.test" {
		t.Errorf("unexpected setup: %+v", s.Setup)
	}
	if s.Steps[1].Capture["tag_id"] != "id" {
		t.Errorf("expected capture, got %+v", s.Steps[1].Capture)
	}
}

func TestLoadScenarioValidation(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"noname.yaml":  "steps:\n  - request: {path: /}\n",
		"nosteps.yaml": "name: x\n",
		"nopath.yaml":  "name: x\nsteps:\n  - name: a\n",
		"bad.txt":      "name: x",
	}
	for name, content := range tests {
		if _, err := LoadScenario(writeFile(t, dir, name, content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", tagsScenario)
	writeFile(t, dir, "b.json", `{"name": "health", "steps": [{"request": {"path": "/admin/health"}}]}`)
	writeFile(t, dir, "notes.md", "ignored")

	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 scenarios, got %d", len(got))
	}

	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestExpandTemplates(t *testing.T) {
	vars := map[string]string{"tag_id": "3", "token": "abc"}
	got, err := ExpandTemplates("/api/tags/{{tag_id}}/?t={{ token }}", vars)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/api/tags/3/?t=abc" {
		t.Errorf("unexpected expansion: %q", got)
	}
	if _, err := ExpandTemplates("{{missing}}", vars); err == nil {
		t.Error("expected unknown variable error")
	}
	if _, err := ExpandTemplates("{{open", vars); err == nil {
		t.Error("expected unterminated error")
	}
}

func TestRunPasses(t *testing.T) {
	r := setupRunner(t)
	s, err := LoadScenario(writeFile(t, t.TempDir(), "tags.yaml", tagsScenario))
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, step := range res.Steps {
		if !step.Passed {
			t.Errorf("step %q failed: %s", step.Name, step.Error)
		}
	}
	if !res.Passed {
		t.Error("expected scenario to pass")
	}
}

func TestRunReportsFailures(t *testing.T) {
	r := setupRunner(t)
	s := &Scenario{
		Name: "unauthenticated",
		Steps: []Step{
			{Name: "list", Request: Request{Path: "/api/tags/"}, Assert: Assert{Status: 200}},
			{Name: "health", Request: Request{Path: "/admin/health"}, Assert: Assert{Status: 200}},
		},
	}

	res, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed {
		t.Error("expected scenario to fail")
	}
	if res.Steps[0].Passed || res.Steps[0].Error != "expected status 200, got 401" {
		t.Errorf("unexpected first step: %+v", res.Steps[0])
	}
	if !res.Steps[1].Passed {
		t.Errorf("later steps should still run: %+v", res.Steps[1])
	}
}

func TestRunSetupLoginFailure(t *testing.T) {
	r := setupRunner(t)
	s := &Scenario{
		Name:  "bad login",
		Setup: Setup{Login: &Login{Email: "editor@dispatch.test", Password: "nope"}},
		Steps: []Step{{Request: Request{Path: "/admin/health"}}},
	}
	if _, err := r.Run(context.Background(), s); err == nil {
		t.Error("expected setup error")
	}
}
