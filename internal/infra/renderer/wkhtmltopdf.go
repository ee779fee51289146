// Package renderer turns a resolved RenderJob into a PDF on local disk.
package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"pdf-from-html/internal/domain"
	"pdf-from-html/internal/infra/logging"
)

// Engine renders one job and leaves the PDF at job.Output.
type Engine interface {
	Render(ctx context.Context, job domain.RenderJob) error
}

// CommandRunner abstracts process execution so tests can avoid real subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stderr string, err error)
}

// ExecRunner runs commands with os/exec using an explicit argument vector.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Orphaned children may hold stderr open after a kill.
	cmd.WaitDelay = 2 * time.Second
	err := cmd.Run()
	return stderr.String(), err
}

// Wkhtmltopdf drives the wkhtmltopdf executable.
type Wkhtmltopdf struct {
	Binary string
	// Timeout bounds one render; zero means no limit.
	Timeout time.Duration
	// FailOnExitCode turns a nonzero exit status into a render failure.
	// When unset the status is only logged and the output file decides.
	FailOnExitCode bool
	Runner         CommandRunner
}

func NewWkhtmltopdf(binary string, timeout time.Duration, failOnExitCode bool) *Wkhtmltopdf {
	if binary == "" {
		binary = "wkhtmltopdf"
	}
	return &Wkhtmltopdf{
		Binary:         binary,
		Timeout:        timeout,
		FailOnExitCode: failOnExitCode,
		Runner:         ExecRunner{},
	}
}

// BuildArgs returns the renderer arguments for job, in order: the
// load-error flag, header and footer files, options, source, destination.
func BuildArgs(job domain.RenderJob) []string {
	args := []string{"--load-error-handling", "ignore"}
	if job.HeaderPath != "" {
		args = append(args, "--header-html", job.HeaderPath)
	}
	if job.FooterPath != "" {
		args = append(args, "--footer-html", job.FooterPath)
	}
	for _, f := range job.Flags {
		args = append(args, "--"+f.Name, f.Value)
	}
	return append(args, job.Source, job.Output)
}

// CommandLine renders the invocation as a single shell-style string. Only the
// title is quoted. It is for logs; Render never hands it to a shell.
func CommandLine(binary string, job domain.RenderJob) string {
	parts := []string{binary, "--load-error-handling", "ignore"}
	if job.HeaderPath != "" {
		parts = append(parts, "--header-html", job.HeaderPath)
	}
	if job.FooterPath != "" {
		parts = append(parts, "--footer-html", job.FooterPath)
	}
	for _, f := range job.Flags {
		v := f.Value
		if f.Name == "title" {
			v = `"` + v + `"`
		}
		parts = append(parts, "--"+f.Name, v)
	}
	parts = append(parts, job.Source, job.Output)
	return strings.Join(parts, " ")
}

// Render runs wkhtmltopdf for job and checks that a PDF was written.
func (w *Wkhtmltopdf) Render(ctx context.Context, job domain.RenderJob) error {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	logging.Info("Running the command", "command", CommandLine(w.Binary, job))
	start := time.Now()
	stderr, err := w.Runner.Run(ctx, w.Binary, BuildArgs(job)...)

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", domain.ErrRenderFailed, ctx.Err())
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		logging.Warn("Renderer exited with nonzero status",
			"exit_code", exitErr.ExitCode(), "stderr", tail(stderr, 2048))
		if w.FailOnExitCode {
			return fmt.Errorf("%w: exit status %d", domain.ErrRenderFailed, exitErr.ExitCode())
		}
	case err != nil:
		return fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	if err := VerifyOutput(job.Output); err != nil {
		return err
	}
	logging.Info("Successfully generated the PDF", "path", job.Output, "took_ms", time.Since(start).Milliseconds())
	return nil
}

// VerifyOutput fails with domain.ErrRenderFailed unless path is a non-empty file.
func VerifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s: file not found", domain.ErrRenderFailed, path)
		}
		return fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s: empty output", domain.ErrRenderFailed, path)
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
