package conversion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"

	"pdf-from-html/internal/domain"
	"pdf-from-html/internal/infra/logging"
)

//go:generate mockgen -source=service.go -destination=mocks/mock_storage.go -package=mocks

// Storage is the object store port used by a conversion.
type Storage interface {
	Fetch(ctx context.Context, bucket, key, dir string) (string, error)
	Store(ctx context.Context, bucket, key, localPath string) (string, bool)
}

// Renderer produces job.Output from job.Source.
type Renderer interface {
	Render(ctx context.Context, job domain.RenderJob) error
}

// State names the steps of a single conversion.
type State string

const (
	StateReceived  State = "received"
	StateValidated State = "validated"
	StateRejected  State = "rejected"
	StateResolved  State = "resolved"
	StateRendered  State = "rendered"
	StateStored    State = "stored"
	StateFailed    State = "failed"
	StateCompleted State = "completed"
)

type Deps struct {
	Storage  Storage
	Renderer Renderer

	Bucket        string
	Project       string
	DefaultFolder string
	ScratchRoot   string
	KeepScratch   bool

	// Now and NewID default to time.Now and xid.
	Now   func() time.Time
	NewID func() string
}

// Service runs one conversion per Convert call. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	storage  Storage
	renderer Renderer
	resolver *Resolver

	bucket        string
	project       string
	defaultFolder string
	scratchRoot   string
	keepScratch   bool
	newID         func() string
}

func NewService(d Deps) *Service {
	newID := d.NewID
	if newID == nil {
		newID = func() string { return xid.New().String() }
	}
	root := d.ScratchRoot
	if root == "" {
		root = os.TempDir()
	}
	return &Service{
		storage:       d.Storage,
		renderer:      d.Renderer,
		resolver:      NewResolver(d.Storage, d.Bucket, d.Now),
		bucket:        d.Bucket,
		project:       d.Project,
		defaultFolder: d.DefaultFolder,
		scratchRoot:   root,
		keepScratch:   d.KeepScratch,
		newID:         newID,
	}
}

// Convert validates req, renders its source to PDF and uploads the result.
//
// Validation, render and upload failures are reported as a 400 Response
// with a nil error. A missing source and a non-http url fail validation.
// Failing to fetch the source object, or to prepare the scratch directory,
// is returned as an error.
func (s *Service) Convert(ctx context.Context, req domain.ConversionRequest) (domain.Response, error) {
	id := s.newID()
	logRequest(id, req)
	s.transition(id, StateReceived)

	src, err := req.Source()
	if err != nil {
		s.transition(id, StateRejected)
		logging.Error(domain.MsgNoSource, "request_id", id)
		return domain.BadRequest(domain.MsgNoSource), nil
	}
	s.transition(id, StateValidated, "source", src.Kind.String())

	scratch, err := NewScratch(s.scratchRoot, id)
	if err != nil {
		s.transition(id, StateFailed)
		return domain.Response{}, err
	}
	if !s.keepScratch {
		defer func() {
			if err := scratch.Cleanup(); err != nil {
				logging.Warn("Failed to remove scratch dir", "request_id", id, "dir", scratch.Dir, "error", err)
			}
		}()
	}

	job, err := s.resolver.Resolve(ctx, req, src, scratch)
	if errors.Is(err, domain.ErrInvalidURL) {
		s.transition(id, StateRejected)
		logging.Error(domain.MsgInvalidURL, "request_id", id, "error", err)
		return domain.BadRequest(domain.MsgInvalidURL), nil
	}
	if err != nil {
		s.transition(id, StateFailed)
		logging.Error("Failed to resolve input", "request_id", id, "error", err)
		return domain.Response{}, fmt.Errorf("resolve %s: %w", src.Kind, err)
	}
	job.Flags = TranslateOptions(req.Options)
	s.transition(id, StateResolved, "source_path", job.Source, "output", job.Output)

	if err := s.renderer.Render(ctx, job); err != nil {
		return s.failed(id, err), nil
	}
	info, err := os.Stat(job.Output)
	if err != nil {
		return s.failed(id, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)), nil
	}
	s.transition(id, StateRendered, "size", info.Size())

	key := s.DestinationKey(req, job.Output)
	stored, ok := s.storage.Store(ctx, s.bucket, key, job.Output)
	if !ok {
		return s.failed(id, fmt.Errorf("%w: %s", domain.ErrStorageStore, key)), nil
	}
	s.transition(id, StateStored, "key", stored)

	s.transition(id, StateCompleted)
	logging.Info("PDF stored", "request_id", id, "file_key", stored, "file_size", info.Size())
	return domain.Created(domain.ConversionResult{Key: stored, Size: info.Size()}), nil
}

// DestinationKey is project/folder+basename. The folder is used verbatim,
// so callers supply their own trailing separator.
func (s *Service) DestinationKey(req domain.ConversionRequest, output string) string {
	return s.project + "/" + req.TargetFolder(s.defaultFolder) + filepath.Base(output)
}

func (s *Service) failed(id string, err error) domain.Response {
	s.transition(id, StateFailed)
	stage := "render"
	if errors.Is(err, domain.ErrStorageStore) {
		stage = "store"
	}
	logging.Error(domain.MsgConversionFailed, "request_id", id, "stage", stage, "error", err)
	return domain.BadRequest(domain.MsgConversionFailed)
}

func (s *Service) transition(id string, st State, kv ...any) {
	logging.Debug("Conversion state", append([]any{"request_id", id, "state", string(st)}, kv...)...)
}

// logRequest logs the shape of the event. Source bodies are summarized by
// length since they may be large HTML documents.
func logRequest(id string, req domain.ConversionRequest) {
	kv := []any{"request_id", id}
	if req.FileKey != nil {
		kv = append(kv, "file_key", *req.FileKey)
	}
	if req.HTMLString != nil {
		kv = append(kv, "html_string_len", len(*req.HTMLString))
	}
	if req.URL != nil {
		kv = append(kv, "url", *req.URL)
	}
	if req.HeaderHTML != nil {
		kv = append(kv, "header_html_len", len(*req.HeaderHTML))
	}
	if req.FooterHTML != nil {
		kv = append(kv, "footer_html_len", len(*req.FooterHTML))
	}
	if req.Folder != nil {
		kv = append(kv, "folder", *req.Folder)
	}
	if o := req.Options; o != nil {
		if o.Margin != nil {
			kv = append(kv, "margin", *o.Margin)
		}
		if o.Orientation != nil {
			kv = append(kv, "orientation", *o.Orientation)
		}
		if o.Title != nil {
			kv = append(kv, "title", *o.Title)
		}
	}
	logging.Info("Conversion requested", kv...)
}
