package domain

// SourceKind identifies which of the mutually exclusive inputs a request uses.
type SourceKind int

const (
	SourceFileKey SourceKind = iota + 1
	SourceHTML
	SourceURL
)

func (k SourceKind) String() string {
	switch k {
	case SourceFileKey:
		return "file_key"
	case SourceHTML:
		return "html_string"
	case SourceURL:
		return "url"
	default:
		return "unknown"
	}
}

// Source is the single resolved input of a request.
type Source struct {
	Kind  SourceKind
	Value string
}

// RenderOptions is the loosely-typed options bag. Unknown keys are dropped by
// the decoder; a nil field means the key was absent.
type RenderOptions struct {
	Margin      *string `json:"margin,omitempty"`
	Orientation *string `json:"orientation,omitempty"`
	Title       *string `json:"title,omitempty"`
}

// ConversionRequest is the invocation payload. Pointer fields distinguish an
// absent key from an empty value.
type ConversionRequest struct {
	URL        *string        `json:"url,omitempty"`
	FileKey    *string        `json:"file_key,omitempty"`
	HTMLString *string        `json:"html_string,omitempty"`
	HeaderHTML *string        `json:"header_html_string,omitempty"`
	FooterHTML *string        `json:"footer_html_string,omitempty"`
	Folder     *string        `json:"folder,omitempty"`
	Options    *RenderOptions `json:"wkhtmltopdf_options,omitempty"`
}

// Source returns the request's input, preferring file_key, then html_string,
// then url. ErrNoSource is returned when none is present.
func (r ConversionRequest) Source() (Source, error) {
	switch {
	case r.FileKey != nil:
		return Source{Kind: SourceFileKey, Value: *r.FileKey}, nil
	case r.HTMLString != nil:
		return Source{Kind: SourceHTML, Value: *r.HTMLString}, nil
	case r.URL != nil:
		return Source{Kind: SourceURL, Value: *r.URL}, nil
	}
	return Source{}, ErrNoSource
}

// TargetFolder returns the requested folder or def when none was given.
func (r ConversionRequest) TargetFolder(def string) string {
	if r.Folder != nil {
		return *r.Folder
	}
	return def
}
