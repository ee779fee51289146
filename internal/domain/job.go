package domain

// Flag is one renderer option, serialized as --<Name> <Value>.
type Flag struct {
	Name  string
	Value string
}

// Flags keeps renderer options in insertion order, which is also command-line order.
type Flags []Flag

// Get returns the value of the first flag with the given name.
func (f Flags) Get(name string) (string, bool) {
	for _, fl := range f {
		if fl.Name == name {
			return fl.Value, true
		}
	}
	return "", false
}

// RenderJob is one resolved conversion, consumed once by a renderer.
type RenderJob struct {
	// Source is a local file path or, when IsURL is set, a remote address.
	Source string
	IsURL  bool
	// Output is where the renderer must write the PDF.
	Output     string
	HeaderPath string
	FooterPath string
	Flags      Flags
}

// ConversionResult describes a stored PDF.
type ConversionResult struct {
	Key  string
	Size int64
}
