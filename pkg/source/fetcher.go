package source

import (
	"bytes"
	"context"
	"html"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds a fetch when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// MaxBytes caps a fetched source.
const MaxBytes = 32 << 20

// Kind says how a source is to be read.
type Kind int

const (
	// KindText is plain text, read line by line.
	KindText Kind = iota
	// KindDocx is a Word document.
	KindDocx
)

// Source is a fetched source document.
type Source struct {
	Name string
	Kind Kind
	Data []byte
}

// Text returns the source as a string.
func (s *Source) Text() (text string) {
	text = string(s.Data)
	return text
}

//nolint:gochecknoglobals // compiled once
var blockBoundary = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|h[1-6]|li|tr|section|article|header|footer)>`)

//nolint:gochecknoglobals // compiled once
var blankRuns = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)

// Fetch retrieves a source from a file path or http(s) URL.
func Fetch(input string) (src *Source, err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	src, err = FetchWithContext(ctx, input)
	return src, err
}

// FetchWithContext retrieves a source with context.
func FetchWithContext(ctx context.Context, input string) (src *Source, err error) {
	parsedURL, urlErr := url.Parse(input)
	if urlErr == nil && (parsedURL.Scheme == "http" || parsedURL.Scheme == "https") {
		src, err = fetchFromURL(ctx, input)
		if err != nil {
			err = errors.Wrapf(err, "failed to fetch source from URL: %s", input)
			return src, err
		}
		return src, err
	}

	src, err = fetchFromFile(input)
	if err != nil {
		err = errors.Wrapf(err, "failed to fetch source from file: %s", input)
		return src, err
	}

	return src, err
}

// FromBytes classifies uploaded bytes.
func FromBytes(name string, data []byte) (src *Source) {
	src = &Source{Name: name, Kind: Classify(name, data), Data: data}
	return src
}

// Classify reports KindDocx for zip data or a .docx name, else KindText.
func Classify(name string, data []byte) (kind Kind) {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) || strings.EqualFold(filepath.Ext(name), ".docx") {
		kind = KindDocx
		return kind
	}
	kind = KindText
	return kind
}

func fetchFromFile(path string) (src *Source, err error) {
	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read file: %s", path)
		return src, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		err = errors.New("file is empty")
		return src, err
	}

	src = FromBytes(filepath.Base(path), data)
	return src, err
}

func fetchFromURL(ctx context.Context, urlStr string) (src *Source, err error) {
	var req *http.Request
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to create HTTP request")
		return src, err
	}

	req.Header.Set("User-Agent", "doc-reformatter/1.0")

	client := &http.Client{
		Timeout: DefaultTimeout,
	}

	var resp *http.Response
	resp, err = client.Do(req)
	if err != nil {
		err = errors.Wrap(err, "HTTP request failed")
		return src, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = errors.Errorf("HTTP request failed with status: %d", resp.StatusCode)
		return src, err
	}

	var body []byte
	body, err = io.ReadAll(io.LimitReader(resp.Body, MaxBytes))
	if err != nil {
		err = errors.Wrap(err, "failed to read response body")
		return src, err
	}

	name := filepath.Base(req.URL.Path)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	switch {
	case Classify(name, body) == KindDocx:
		src = &Source{Name: name, Kind: KindDocx, Data: body}
	case mediaType == "text/html" || bytes.Contains(bytes.ToLower(body[:min(len(body), 512)]), []byte("<html")):
		src = &Source{Name: name, Kind: KindText, Data: []byte(StripHTML(string(body)))}
	default:
		src = &Source{Name: name, Kind: KindText, Data: body}
	}

	if len(bytes.TrimSpace(src.Data)) == 0 {
		err = errors.New("fetched content is empty after processing")
		return src, err
	}

	return src, err
}

// StripHTML reduces a page to its text, one line per block element.
func StripHTML(page string) (text string) {
	page = blockBoundary.ReplaceAllStringFunc(page, func(tag string) (replacement string) {
		replacement = tag + "\n"
		return replacement
	})

	text = bluemonday.StrictPolicy().Sanitize(page)
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n")
	text = strings.TrimSpace(text)
	return text
}
