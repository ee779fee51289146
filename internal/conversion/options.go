package conversion

import (
	"strings"

	"pdf-from-html/internal/domain"
)

var marginFlags = [4]string{"margin-top", "margin-right", "margin-bottom", "margin-left"}

// TranslateOptions maps the request's options bag to renderer flags.
//
// Margin must hold exactly four whitespace-separated values (top right bottom
// left); any other count drops margins entirely. Orientation is lower-cased and
// anything but portrait or landscape becomes portrait. Title passes through.
func TranslateOptions(opts *domain.RenderOptions) domain.Flags {
	var flags domain.Flags
	if opts == nil {
		return flags
	}

	if opts.Margin != nil {
		if parts := strings.Fields(*opts.Margin); len(parts) == len(marginFlags) {
			for i, name := range marginFlags {
				flags = append(flags, domain.Flag{Name: name, Value: parts[i]})
			}
		}
	}

	if opts.Orientation != nil {
		o := strings.ToLower(*opts.Orientation)
		if o != "portrait" && o != "landscape" {
			o = "portrait"
		}
		flags = append(flags, domain.Flag{Name: "orientation", Value: o})
	}

	if opts.Title != nil {
		flags = append(flags, domain.Flag{Name: "title", Value: *opts.Title})
	}
	return flags
}
