package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedSource = errors.New("only arXiv IDs or PDF URLs are supported")
	ErrUnsupportedFormat = errors.New("unsupported file format, upload a real PDF or a plain text file")
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrFileTooLarge      = errors.New("file exceeds the size limit")
	ErrEmptySource       = errors.New("paper source cannot be empty")
)

var (
	arxivIDPattern    = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	unsafeNameChars   = regexp.MustCompile(`[^\p{L}\p{N}_\-. ]+`)
	unsafeSourceChars = regexp.MustCompile(`[^\p{L}\p{N}_\-.]+`)
)

const maxSourceTagLen = 80

// FileInfo describes a file saved (or about to be saved) into the upload directory.
type FileInfo struct {
	Filename  string `json:"filename"`
	SavedName string `json:"saved_name"`
	Path      string `json:"path"`
	URL       string `json:"url,omitempty"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
}

// ResolveSource maps an arXiv id ("arXiv:2401.01234", "2401.01234v2") or an
// http(s) URL to a download URL and a display file name ending in .pdf.
func ResolveSource(source string) (downloadURL, filename string, err error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return "", "", ErrEmptySource
	}
	if len(src) >= 6 && strings.EqualFold(src[:6], "arxiv:") {
		src = strings.TrimSpace(src[6:])
	}
	if arxivIDPattern.MatchString(src) {
		return fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", src), src + ".pdf", nil
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		u, err := url.Parse(src)
		if err != nil {
			return "", "", fmt.Errorf("invalid source url: %w", err)
		}
		filename = path.Base(u.Path)
		if filename == "" || filename == "." || filename == "/" {
			filename = "paper.pdf"
		}
		if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
			filename += ".pdf"
		}
		return src, filename, nil
	}
	return "", "", ErrUnsupportedSource
}

// SafeFilename replaces characters outside letters, digits, '_', '-', '.' and
// space with '_'.
func SafeFilename(name string) string {
	safe := strings.TrimSpace(unsafeNameChars.ReplaceAllString(name, "_"))
	if safe == "" {
		return fmt.Sprintf("paper_%s.pdf", newHexID())
	}
	return safe
}

// SafeSourceTag turns a source string into a file-name fragment of at most 80 runes.
func SafeSourceTag(source string) string {
	tag := strings.Trim(unsafeSourceChars.ReplaceAllString(source, "_"), "_")
	if r := []rune(tag); len(r) > maxSourceTagLen {
		tag = string(r[:maxSourceTagLen])
	}
	if tag == "" {
		return newHexID()
	}
	return tag
}

// BuildSourceFileInfo resolves source and computes where the download will be
// saved: "{sessionID}_{tag}.pdf" under uploadDir. Nothing is written.
func BuildSourceFileInfo(source, sessionID, uploadDir string) (*FileInfo, error) {
	downloadURL, filename, err := ResolveSource(source)
	if err != nil {
		return nil, err
	}
	savedName := fmt.Sprintf("%s_%s", sessionID, SafeSourceTag(source))
	if !strings.HasSuffix(strings.ToLower(savedName), ".pdf") {
		savedName += ".pdf"
	}
	return &FileInfo{
		Filename:  SafeFilename(filename),
		SavedName: savedName,
		Path:      filepath.Join(uploadDir, savedName),
		URL:       downloadURL,
		Type:      "application/pdf",
	}, nil
}

// Download fetches info.URL into info.Path, aborting once more than maxSize
// bytes arrive. info.Size is set on success; a partial file is removed on failure.
func Download(ctx context.Context, client *http.Client, info *FileInfo, maxSize int64) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", info.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: unexpected status %s", info.URL, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(info.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	f, err := os.Create(info.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", info.Path, err)
	}

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxSize+1))
	closeErr := f.Close()
	if err == nil && n > maxSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(info.Path)
		if errors.Is(err, ErrFileTooLarge) {
			return err
		}
		return fmt.Errorf("failed to save download: %w", err)
	}
	info.Size = n
	return nil
}

func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
