package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goccy/go-json"

	"pdf-from-html/internal/domain"
	"pdf-from-html/internal/infra/logging"
)

// Chrome renders jobs with headless Chrome through chromedp. It reads the same
// flag vocabulary as wkhtmltopdf so either engine can serve a job.
type Chrome struct {
	ExecPath  string
	NoSandbox bool
	Timeout   time.Duration
}

// Render prints job.Source to job.Output.
func (c *Chrome) Render(ctx context.Context, job domain.RenderJob) error {
	params, err := PrintParams(job)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	tmpDir, err := os.MkdirTemp("", "chromedata-*")
	if err != nil {
		return fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(tmpDir),
		// Software rendering only; minimal containers have no usable GPU stack.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if c.ExecPath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(c.ExecPath))
	}
	if c.NoSandbox {
		allocatorOptions = append(allocatorOptions, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions...)
	defer cancelAlloc()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	if c.Timeout > 0 {
		chromeCtx, cancel = context.WithTimeout(chromeCtx, c.Timeout)
		defer cancel()
	}

	target := job.Source
	if !job.IsURL {
		abs, err := filepath.Abs(job.Source)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
		}
		target = "file://" + filepath.ToSlash(abs)
	}

	actions := []chromedp.Action{
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if title, ok := job.Flags.Get("title"); ok {
		quoted, _ := json.Marshal(title)
		actions = append(actions, chromedp.Evaluate("document.title = "+string(quoted), nil))
	}
	var pdfBuf []byte
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdfBuf, _, err = params.Do(ctx)
		return err
	}))

	logging.Info("Rendering with chrome", "target", target, "output", job.Output)
	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	if err := os.WriteFile(job.Output, pdfBuf, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	return VerifyOutput(job.Output)
}

// PrintParams maps the job's flags and header/footer files onto Chrome's print settings.
func PrintParams(job domain.RenderJob) (*page.PrintToPDFParams, error) {
	p := page.PrintToPDF().WithPrintBackground(true)

	if o, ok := job.Flags.Get("orientation"); ok && o == "landscape" {
		p = p.WithLandscape(true)
	}

	margins := []struct {
		flag string
		set  func(float64) *page.PrintToPDFParams
	}{
		{"margin-top", func(v float64) *page.PrintToPDFParams { return p.WithMarginTop(v) }},
		{"margin-right", func(v float64) *page.PrintToPDFParams { return p.WithMarginRight(v) }},
		{"margin-bottom", func(v float64) *page.PrintToPDFParams { return p.WithMarginBottom(v) }},
		{"margin-left", func(v float64) *page.PrintToPDFParams { return p.WithMarginLeft(v) }},
	}
	for _, m := range margins {
		raw, ok := job.Flags.Get(m.flag)
		if !ok {
			continue
		}
		inches, err := ParseLength(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.flag, err)
		}
		p = m.set(inches)
	}

	if job.HeaderPath == "" && job.FooterPath == "" {
		return p, nil
	}
	header, err := readTemplate(job.HeaderPath)
	if err != nil {
		return nil, err
	}
	footer, err := readTemplate(job.FooterPath)
	if err != nil {
		return nil, err
	}
	return p.WithDisplayHeaderFooter(true).WithHeaderTemplate(header).WithFooterTemplate(footer), nil
}

// readTemplate returns the file's HTML, or an empty span so Chrome's default
// header/footer is suppressed.
func readTemplate(path string) (string, error) {
	if path == "" {
		return "<span></span>", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(b), nil
}

var unitsPerInch = map[string]float64{
	"":   25.4,
	"mm": 25.4,
	"cm": 2.54,
	"in": 1,
	"pt": 72,
	"px": 96,
}

// ParseLength converts a wkhtmltopdf length ("10mm", "1in", "12") to inches.
// Bare numbers are millimetres.
func ParseLength(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-' && r != '+'
	})
	num, unit := s, ""
	if i >= 0 {
		num, unit = s[:i], s[i:]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	per, ok := unitsPerInch[unit]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative length %q", s)
	}
	return v / per, nil
}
