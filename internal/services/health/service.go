// Package health reports whether the service can generate documents.
package health

import (
	"context"
	"database/sql"
	"os"
	"os/exec"
	"time"
)

const pingTimeout = 2 * time.Second

// Check is the outcome of one dependency probe.
type Check struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report aggregates every check. OK is false when any check failed.
type Report struct {
	OK     bool             `json:"ok"`
	Checks map[string]Check `json:"checks"`
}

// Service encapsulates health-related checks. A nil DB skips the ledger check.
type Service struct {
	DB           *sql.DB
	LatexCommand string
	TemplatesDir string
	lookPath     func(string) (string, error)
}

// NewService constructs a new health service.
func NewService(db *sql.DB, latexCommand, templatesDir string) *Service {
	return &Service{DB: db, LatexCommand: latexCommand, TemplatesDir: templatesDir, lookPath: exec.LookPath}
}

// Status probes the TeX engine, the ledger database and the default templates.
func (s *Service) Status(ctx context.Context) Report {
	r := Report{OK: true, Checks: map[string]Check{}}
	add := func(name string, c Check) {
		r.Checks[name] = c
		r.OK = r.OK && c.OK
	}

	lookPath := s.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	command := s.LatexCommand
	if command == "" {
		command = "pdflatex"
	}
	if path, err := lookPath(command); err != nil {
		add("latex", Check{Detail: err.Error()})
	} else {
		add("latex", Check{OK: true, Detail: path})
	}

	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := s.DB.PingContext(pingCtx)
		cancel()
		if err != nil {
			add("ledger", Check{Detail: err.Error()})
		} else {
			add("ledger", Check{OK: true})
		}
	}

	if s.TemplatesDir != "" {
		if info, err := os.Stat(s.TemplatesDir); err != nil || !info.IsDir() {
			add("templates", Check{Detail: "default templates directory missing: " + s.TemplatesDir})
		} else {
			add("templates", Check{OK: true})
		}
	}
	return r
}
