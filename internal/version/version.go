// Package version derives the release version from package metadata.
//
// The build tool reports a package identity string such as
//
//	path+file:///src/sparse_set_container#0.3.1
//	registry+https://github.com/rust-lang/crates.io-index#sparse_set_container@0.3.1
//
// and the version token is the dotted triple that immediately follows the
// '@' separator, or the '#' separator when no '@'-prefixed triple exists.
package version

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// Version is a major.minor.patch release identifier.
type Version struct {
	Major int
	Minor int
	Patch int
}

// String returns the full dotted form, e.g. "1.4.2".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Short returns major.minor, the form used in dependency snippets.
func (v Version) Short() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// MarshalText encodes the version in its full dotted form.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// MetadataParseError reports metadata text without a usable version token.
type MetadataParseError struct {
	Metadata string
	Reason   string
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("metadata parse: %s (metadata %q)", e.Reason, e.Metadata)
}

// Separators are tried in order.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`@(\d+)\.(\d+)\.(\d+)`),
	regexp.MustCompile(`#(\d+)\.(\d+)\.(\d+)`),
}

// Parse extracts the version from metadata text.
func Parse(metadata string) (Version, error) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(metadata)
		if m == nil {
			continue
		}
		var parts [3]int
		for i := range parts {
			n, err := strconv.Atoi(m[i+1])
			if err != nil {
				return Version{}, &MetadataParseError{
					Metadata: metadata,
					Reason:   fmt.Sprintf("component %q out of range", m[i+1]),
				}
			}
			parts[i] = n
		}
		return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
	}
	return Version{}, &MetadataParseError{
		Metadata: metadata,
		Reason:   "no @ or # prefixed major.minor.patch token",
	}
}

// MetadataSource answers the package identity query.
type MetadataSource interface {
	PackageID(ctx context.Context) (string, error)
}

// Resolver queries package metadata and parses the version out of it.
type Resolver struct {
	Source MetadataSource
}

// Resolve runs the metadata query once and parses its output.
func (r *Resolver) Resolve(ctx context.Context) (Version, error) {
	id, err := r.Source.PackageID(ctx)
	if err != nil {
		return Version{}, fmt.Errorf("query package metadata: %w", err)
	}
	return Parse(id)
}
