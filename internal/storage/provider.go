// Package storage provides the blob layer used by ingestion: a small
// Provider contract with local filesystem and S3-compatible backends, a
// per-user factory, and deterministic key construction.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
)

// Backend tags persisted on recordings and storage configurations.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Provider is a uniform put/get/delete over named blobs.
//
// A successful Upload makes the blob durably retrievable by key. Upload does
// not roll back when the caller's own bookkeeping fails afterwards.
type Provider interface {
	// Backend returns the tag stored alongside recordings (local, s3).
	Backend() string
	Upload(ctx context.Context, key string, data []byte, contentType string) (location string, err error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// BuildKey returns the storage key for a recording. The result depends only
// on its arguments:
//
//	<source>/<userID>/<YYYY>/<MM>/<YYYYMMDDTHHMMSS.mmmZ>_<id8>_<filename>
//
// id8 is the first 8 hex digits of sha256(sourceFileID), so a redelivered
// file maps to the same key and two different files never share one.
func BuildKey(source, userID, sourceFileID string, ts time.Time, filename string) string {
	ts = ts.UTC()
	sum := sha256.Sum256([]byte(sourceFileID))
	return path.Join(
		sanitizeSegment(source),
		sanitizeSegment(userID),
		ts.Format("2006"),
		ts.Format("01"),
		ts.Format("20060102T150405.000Z")+"_"+hex.EncodeToString(sum[:4])+"_"+sanitizeSegment(filename),
	)
}

// sanitizeSegment keeps letters, digits, dot, dash and underscore; anything
// else becomes an underscore so a segment can never introduce a separator.
func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return "_"
	}
	return out
}

// validateKey rejects keys that would escape a root directory or bucket prefix.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
