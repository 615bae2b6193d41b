// Package parser turns SubsPlease release file names into typed downloads.
//
// Release names follow a small grammar:
//
//	[Source] Title - 10.5v2 (1080p) [F00DBABE].mkv
//	[Source] Title (01-12) (1080p) [Batch]
//	[Source] Movie Title (1080p) [F00DBABE].mkv
//
// The episode identifier accepts an optional decimal part and an optional
// version part in either order, followed by an optional alphanumeric marker.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/anisub/anisub/internal/model"
)

// ParsedDownload is the typed form of a single release file name.
type ParsedDownload struct {
	Source     string
	Title      string
	Variant    model.DownloadVariant
	Resolution uint16
}

var (
	ErrExpectedTag  = errors.New("expected bracketed tag")
	ErrTrailing     = errors.New("unexpected trailing content")
	ErrNoResolution = errors.New("no resolution marker")
	ErrBatchRange   = errors.New("invalid batch episode range")
)

// Parse parses a release file name. Errors name the stage that failed.
func Parse(name string) (ParsedDownload, error) {
	source, rest, err := bracketed(name)
	if err != nil {
		return ParsedDownload{}, fmt.Errorf("source: %w", err)
	}

	cut := strings.Index(rest, "[")
	if cut < 0 {
		return ParsedDownload{}, fmt.Errorf("tail: %w", ErrExpectedTag)
	}
	body := strings.TrimSpace(rest[:cut])

	tag, after, err := bracketed(rest[cut:])
	if err != nil {
		return ParsedDownload{}, fmt.Errorf("tail: %w", err)
	}
	if after != "" && after != ".mkv" {
		return ParsedDownload{}, fmt.Errorf("tail: %w: %q", ErrTrailing, after)
	}

	prefix, resolution, err := splitResolution(body)
	if err != nil {
		return ParsedDownload{}, fmt.Errorf("resolution: %w", err)
	}
	prefix = strings.TrimSpace(prefix)

	var (
		title   string
		variant model.DownloadVariant
	)
	if tag == "Batch" {
		title, variant, err = parseBatch(prefix)
		if err != nil {
			return ParsedDownload{}, fmt.Errorf("batch: %w", err)
		}
	} else {
		title, variant = parseEpisodeOrMovie(prefix)
	}

	return ParsedDownload{
		Source:     source,
		Title:      title,
		Variant:    variant,
		Resolution: resolution,
	}, nil
}

// Filename renders the canonical release name for the parsed fields.
// Parsing the result yields the same ParsedDownload.
func (p ParsedDownload) Filename() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", p.Source, p.Title)

	switch v := p.Variant.(type) {
	case model.Batch:
		fmt.Fprintf(&b, " (%02d-%02d) (%dp) [Batch]", v.Start, v.End, p.Resolution)
	case model.Episode:
		fmt.Fprintf(&b, " - %02d", v.Number)
		if v.Decimal != nil {
			fmt.Fprintf(&b, ".%d", *v.Decimal)
		}
		if v.Version != nil {
			fmt.Fprintf(&b, "v%d", *v.Version)
		}
		b.WriteString(v.Extra)
		fmt.Fprintf(&b, " (%dp) [00000000].mkv", p.Resolution)
	default:
		fmt.Fprintf(&b, " (%dp) [00000000].mkv", p.Resolution)
	}

	return b.String()
}

// bracketed consumes a leading "[tag]" and returns the tag and the rest.
func bracketed(s string) (string, string, error) {
	if !strings.HasPrefix(s, "[") {
		return "", "", ErrExpectedTag
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return "", "", ErrExpectedTag
	}
	return s[1:end], s[end+1:], nil
}

// splitResolution finds the first "(NNNNp)" token and returns the text
// before it and the numeric resolution. Parenthesized tokens that are not
// resolutions, like a "(2022)" year in a title, are passed over.
func splitResolution(body string) (string, uint16, error) {
	for i := 0; i < len(body); i++ {
		if body[i] != '(' {
			continue
		}
		j := i + 1
		for j < len(body) && isDigit(body[j]) {
			j++
		}
		if j == i+1 || !strings.HasPrefix(body[j:], "p)") {
			continue
		}
		n, err := strconv.ParseUint(body[i+1:j], 10, 16)
		if err != nil {
			continue
		}
		return body[:i], uint16(n), nil
	}
	return "", 0, ErrNoResolution
}

// parseBatch splits "Title (01-12)" on the right-most parenthesized range.
func parseBatch(prefix string) (string, model.DownloadVariant, error) {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != '(' {
			continue
		}
		start, rest, ok := digits(prefix[i+1:])
		if !ok || !strings.HasPrefix(rest, "-") {
			continue
		}
		end, rest, ok := digits(rest[1:])
		if !ok || !strings.HasPrefix(rest, ")") {
			continue
		}
		return strings.TrimSpace(prefix[:i]), model.Batch{Start: start, End: end}, nil
	}
	return "", nil, ErrBatchRange
}

// parseEpisodeOrMovie splits "Title - 10.5v2" on the right-most " - "
// separator. When no separator exists, or the trailing segment is not a
// valid episode identifier, the whole prefix is a movie title.
func parseEpisodeOrMovie(prefix string) (string, model.DownloadVariant) {
	idx := strings.LastIndex(prefix, " - ")
	if idx < 0 {
		return prefix, model.Movie{}
	}
	ep, ok := parseEpisodeIdent(prefix[idx+3:])
	if !ok {
		return prefix, model.Movie{}
	}
	return strings.TrimSpace(prefix[:idx]), ep
}

// parseEpisodeIdent parses "10", "10.5", "10v2", "10.5v2D" and the
// version-before-decimal orderings. The whole segment must be consumed.
func parseEpisodeIdent(s string) (model.Episode, bool) {
	num, rest, ok := digits(s)
	if !ok {
		return model.Episode{}, false
	}
	ep := model.Episode{Number: num}

	for range 2 {
		if ep.Decimal == nil && strings.HasPrefix(rest, ".") {
			if d, r, ok := digits(rest[1:]); ok {
				ep.Decimal = &d
				rest = r
				continue
			}
		}
		if ep.Version == nil && strings.HasPrefix(rest, "v") {
			if v, r, ok := digits(rest[1:]); ok {
				ep.Version = &v
				rest = r
				continue
			}
		}
		break
	}

	j := 0
	for j < len(rest) && isAlnum(rest[j]) {
		j++
	}
	ep.Extra = rest[:j]

	if rest[j:] != "" {
		return model.Episode{}, false
	}
	return ep, true
}

func digits(s string) (uint32, string, bool) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	n, err := strconv.ParseUint(s[:i], 10, 32)
	if err != nil {
		return 0, s, false
	}
	return uint32(n), s[i:], true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
