package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// File formats recognised by DetectFormat.
const (
	FormatPDF  = "pdf"
	FormatHTML = "html"
	FormatText = "text"
)

// Page is the text of one loaded page. Number is 0-based.
type Page struct {
	Number int
	Text   string
}

// DetectFormat sniffs the first bytes of the file: "%PDF-" is pdf, an html
// doctype or tag is html, anything else is treated as text.
func DetectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 100)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	header = header[:n]

	if bytes.HasPrefix(header, []byte("%PDF-")) {
		return FormatPDF, nil
	}
	lower := bytes.ToLower(header)
	if bytes.Contains(lower, []byte("<!doctype html")) || bytes.Contains(lower, []byte("<html")) {
		return FormatHTML, nil
	}
	return FormatText, nil
}

// LoadPages loads the file as pdf or text depending on its sniffed format.
func LoadPages(path string) ([]Page, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatPDF:
		return LoadPDF(path)
	case FormatText:
		return LoadText(path)
	default:
		return nil, fmt.Errorf("%w: detected %s", ErrUnsupportedFormat, format)
	}
}

// LoadPDF extracts plain text page by page. Pages without content come back with
// empty text so page numbers stay aligned with the document.
func LoadPDF(path string) (pages []Page, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("failed to parse pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		page := Page{Number: i - 1}
		p := r.Page(i)
		if !p.V.IsNull() {
			text, err := p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to extract text from page %d of %s: %w", i, path, err)
			}
			page.Text = text
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// LoadText reads a plain text file as a single page. UTF-8 is tried first, then
// UTF-16 when a byte order mark is present, then GBK. Content that decodes to
// binary noise is rejected with ErrUnsupportedFormat.
func LoadText(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return []Page{{Number: 0, Text: text}}, nil
}

func decodeText(data []byte) (string, error) {
	text, err := decodeBytes(data)
	if err != nil {
		return "", err
	}
	if looksBinary(text) {
		return "", fmt.Errorf("%w: binary content", ErrUnsupportedFormat)
	}
	return text, nil
}

func decodeBytes(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err == nil {
			return string(out), nil
		}
	}
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("unrecognised text encoding: %w", err)
	}
	return string(out), nil
}

// looksBinary reports decoded text that holds a NUL, or where more than one
// rune in ten is a control character or a replacement rune.
func looksBinary(text string) bool {
	var total, bad int
	for _, r := range text {
		total++
		switch {
		case r == 0:
			return true
		case r == utf8.RuneError:
			bad++
		case r < 0x20 && r != '\t' && r != '\n' && r != '\r' && r != '\f' && r != '\v':
			bad++
		case r == 0x7f:
			bad++
		}
	}
	return bad*10 > total
}
