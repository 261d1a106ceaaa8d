package uploads

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Extensions the proof intake accepts, matching the portal's attachment policy.
var allowedExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "txt": {},
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	"zip": {}, "rar": {}, "xls": {}, "xlsx": {}, "csv": {},
	"ppt": {}, "pptx": {},
}

const maxBaseNameLen = 100

// RejectError carries the machine-readable reason an attachment was refused.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	return "attachment rejected: " + e.Reason
}

var (
	spacesRe   = regexp.MustCompile(`\s+`)
	unsafeRe   = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	multiDotRe = regexp.MustCompile(`\.{2,}`)
)

// SanitizeFilename strips any path component, collapses spaces to
// underscores, drops everything outside [alnum . _ -] and truncates the base
// name to 100 characters. The extension is preserved lowercased.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = spacesRe.ReplaceAllString(name, "_")
	name = unsafeRe.ReplaceAllString(name, "")
	name = multiDotRe.ReplaceAllString(name, ".")

	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if len(base) > maxBaseNameLen {
		base = base[:maxBaseNameLen]
	}
	if base == "" {
		base = "upload"
	}
	return base + ext
}

// Stored describes a persisted proof asset.
type Stored struct {
	Path string
	MD5  string
	Size int64
}

// Store persists payment proof uploads under a root directory, one
// subdirectory per donation reference.
type Store struct {
	root     string
	maxBytes int64
}

func NewStore(root string, maxBytes int64) *Store {
	return &Store{root: root, maxBytes: maxBytes}
}

// Save validates and writes one uploaded proof. Validation failures return
// *RejectError; the caller leaves the donation untouched on rejection.
func (s *Store) Save(reference, filename string, data []byte) (*Stored, error) {
	if len(data) == 0 {
		return nil, &RejectError{Reason: "empty_file"}
	}
	if int64(len(data)) > s.maxBytes {
		return nil, &RejectError{Reason: "too_large"}
	}

	clean := SanitizeFilename(filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(clean)), ".")
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, &RejectError{Reason: "unsupported_type"}
	}

	dir := filepath.Join(s.root, "proofs", reference)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create proof dir: %w", err)
	}

	// short random prefix keeps re-uploads from clobbering each other
	stored := filepath.Join(dir, uuid.NewString()[:8]+"_"+clean)
	if err := os.WriteFile(stored, data, 0o644); err != nil {
		return nil, fmt.Errorf("write proof: %w", err)
	}

	sum := md5.Sum(data)
	return &Stored{
		Path: stored,
		MD5:  hex.EncodeToString(sum[:]),
		Size: int64(len(data)),
	}, nil
}
