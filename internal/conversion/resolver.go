package conversion

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"pdf-from-html/internal/domain"
)

const (
	htmlSuffix = "-html-to-pdf.html"
	urlPDFName = "url.pdf"
	headerName = "header.html"
	footerName = "footer.html"
	// Fetched objects keep their base name, so they live apart from the
	// fixed names above.
	sourceDir = "src"
)

// Fetcher downloads an object into a local directory.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key, dir string) (string, error)
}

// Resolver turns a request's source and header/footer strings into files
// in the invocation's scratch directory.
type Resolver struct {
	fetcher Fetcher
	bucket  string
	now     func() time.Time
}

func NewResolver(fetcher Fetcher, bucket string, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{fetcher: fetcher, bucket: bucket, now: now}
}

// Resolve builds a RenderJob without flags for src.
func (r *Resolver) Resolve(ctx context.Context, req domain.ConversionRequest, src domain.Source, scratch *Scratch) (domain.RenderJob, error) {
	var job domain.RenderJob

	switch src.Kind {
	case domain.SourceFileKey:
		dir, err := scratch.Subdir(sourceDir)
		if err != nil {
			return domain.RenderJob{}, err
		}
		local, err := r.fetcher.Fetch(ctx, r.bucket, src.Value, dir)
		if err != nil {
			return domain.RenderJob{}, err
		}
		job.Source = local
		job.Output = PDFPath(local)

	case domain.SourceHTML:
		local := scratch.Path(TimestampName(r.now()) + htmlSuffix)
		if err := scratch.WriteFile(local, src.Value); err != nil {
			return domain.RenderJob{}, err
		}
		job.Source = local
		job.Output = PDFPath(local)

	case domain.SourceURL:
		if !isHTTPURL(src.Value) {
			return domain.RenderJob{}, fmt.Errorf("%w: %q", domain.ErrInvalidURL, src.Value)
		}
		job.Source = src.Value
		job.IsURL = true
		job.Output = scratch.Path(urlPDFName)

	default:
		return domain.RenderJob{}, domain.ErrNoSource
	}

	if req.HeaderHTML != nil {
		job.HeaderPath = scratch.Path(headerName)
		if err := scratch.WriteFile(job.HeaderPath, *req.HeaderHTML); err != nil {
			return domain.RenderJob{}, err
		}
	}
	if req.FooterHTML != nil {
		job.FooterPath = scratch.Path(footerName)
		if err := scratch.WriteFile(job.FooterPath, *req.FooterHTML); err != nil {
			return domain.RenderJob{}, err
		}
	}
	return job, nil
}

// isHTTPURL reports whether v is an absolute http(s) URL. Anything else,
// including values with a leading "-", would reach the renderer as an option.
func isHTTPURL(v string) bool {
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// TimestampName formats t to the microsecond with only filename-safe
// characters, e.g. 2024-03-05_141502123456.
func TimestampName(t time.Time) string {
	return strings.Replace(t.Format("2006-01-02_150405.000000"), ".", "", 1)
}

// PDFPath swaps the extension of p for .pdf, keeping the base name.
func PDFPath(p string) string {
	out := strings.TrimSuffix(p, filepath.Ext(p)) + ".pdf"
	if out == p {
		// The source already is a .pdf; never overwrite it.
		out = p + ".pdf"
	}
	return out
}
