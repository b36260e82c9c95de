// Package fetch drives concurrent retrieval of schedule and box-score pages
// against rate-sensitive, JavaScript-rendered athletics sites. Work runs in
// fixed-size batches so the heavyweight browser resource can be recycled,
// with bounded concurrency and per-target retry inside each batch.
package fetch

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fortuna/talon/internal/normalize"
)

// TargetKind tells the orchestrator (and the extraction engine downstream)
// what a payload is.
type TargetKind string

const (
	KindFeed     TargetKind = "feed"     // JSON results feed
	KindSchedule TargetKind = "schedule" // rendered schedule page
	KindBoxscore TargetKind = "boxscore" // rendered box-score page
)

// Target is one document to retrieve.
type Target struct {
	Kind TargetKind
	URL  string
	Team string // context team for extraction and the failure log
	Date string // optional; identifies box-score targets in the failure log
}

// Result is the outcome for one target. Err is non-nil when every attempt
// failed; the payload is the raw document otherwise.
type Result struct {
	Target   Target
	Payload  string
	Attempts int
	Err      error
}

// OK reports whether the target yielded a payload.
func (r Result) OK() bool { return r.Err == nil }

// ErrPermanent marks failures that retrying cannot fix (malformed URL, 4xx).
// Everything else is treated as transient and retried with backoff.
var ErrPermanent = errors.New("permanent fetch failure")

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, ErrPermanent)
}

// Archiver persists successfully fetched payloads verbatim so extraction
// bugs can be replayed without re-fetching. Failures to archive are logged
// and swallowed; the archive is a diagnostic aid, not part of the pipeline.
type Archiver struct {
	dir string
}

// NewArchiver creates the archive directory if needed.
func NewArchiver(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	return &Archiver{dir: dir}, nil
}

// Save writes one payload to a timestamped file. The URL path goes into the
// name so same-team targets fetched within one second do not collide.
func (a *Archiver) Save(t Target, payload string) {
	ext := ".html"
	if t.Kind == KindFeed {
		ext = ".json"
	}
	name := fmt.Sprintf("%s_%s_%s_%s%s",
		time.Now().UTC().Format("20060102T150405"),
		normalize.Slug(t.Team), string(t.Kind), pathSlug(t.URL), ext)
	if err := os.WriteFile(filepath.Join(a.dir, name), []byte(payload), 0o644); err != nil {
		log.Printf("[fetch] archive write failed for %s: %v", t.URL, err)
	}
}

func pathSlug(raw string) string {
	slug := ""
	if u, err := url.Parse(raw); err == nil && u.Path != "" && u.Path != "/" {
		slug = normalize.Slug(u.Path)
	} else {
		slug = normalize.Slug(raw)
	}
	const maxLen = 80
	if len(slug) > maxLen {
		slug = slug[len(slug)-maxLen:]
	}
	return slug
}

// FailureLog records permanently failed targets, one line each, with enough
// identity for a later manual or automated re-attempt.
type FailureLog struct {
	path string
}

// NewFailureLog points the log at path; the file is created on first append.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Append writes one failure line.
func (f *FailureLog) Append(t Target, err error) {
	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\n",
		time.Now().UTC().Format(time.RFC3339),
		t.Date, t.Team, string(t.Kind), t.URL,
		strings.ReplaceAll(err.Error(), "\n", " "))
	fh, ferr := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if ferr != nil {
		log.Printf("[fetch] failure log unavailable: %v", ferr)
		return
	}
	defer fh.Close()
	if _, werr := fh.WriteString(line); werr != nil {
		log.Printf("[fetch] failure log write failed: %v", werr)
	}
}
