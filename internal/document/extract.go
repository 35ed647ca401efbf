// Package document turns uploaded resume files into plain text and content fingerprints.
package document

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/jonathan/skill-verifier/internal/logging"
)

// ErrEmptyDocument is returned for zero-length input
var ErrEmptyDocument = errors.New("document is empty")

// ExtractionError reports a document that could not be parsed.
// Page is 1-based, or 0 when the document could not be opened.
type ExtractionError struct {
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("failed to extract text from page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("failed to open document: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// PageSource yields the text of a parsed document one page at a time
type PageSource interface {
	NumPage() int
	// PageText returns the text of page i, counting from 1
	PageText(i int) (string, error)
}

// Opener parses raw document bytes into a PageSource
type Opener func(data []byte) (PageSource, error)

// Fingerprint returns the hex MD5 digest of the raw document bytes
func Fingerprint(doc []byte) string {
	sum := md5.Sum(doc)
	return hex.EncodeToString(sum[:])
}

// Extractor converts documents to text
type Extractor struct {
	open   Opener
	logger *zap.Logger
}

// NewExtractor creates a PDF extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	return NewExtractorWithOpener(OpenPDF, logger)
}

// NewExtractorWithOpener creates an extractor over a custom parser
func NewExtractorWithOpener(open Opener, logger *zap.Logger) *Extractor {
	return &Extractor{open: open, logger: logging.Named(logger, "document")}
}

// ExtractText concatenates the text of every page in page order.
// Any page that fails aborts the whole extraction.
func (e *Extractor) ExtractText(doc []byte) (text string, err error) {
	if len(doc) == 0 {
		return "", ErrEmptyDocument
	}

	page := 0
	// the PDF parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = &ExtractionError{Page: page, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	src, err := e.open(doc)
	if err != nil {
		return "", &ExtractionError{Err: err}
	}

	var sb strings.Builder
	for page = 1; page <= src.NumPage(); page++ {
		pageText, err := src.PageText(page)
		if err != nil {
			return "", &ExtractionError{Page: page, Err: err}
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	text = CleanText(sb.String())
	e.logger.Debug("document text extracted",
		zap.Int("pages", src.NumPage()),
		zap.Int("chars", len(text)))
	return text, nil
}

type pdfSource struct {
	reader *pdf.Reader
}

// OpenPDF parses PDF bytes
func OpenPDF(data []byte) (PageSource, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &pdfSource{reader: reader}, nil
}

func (s *pdfSource) NumPage() int {
	return s.reader.NumPage()
}

func (s *pdfSource) PageText(i int) (string, error) {
	p := s.reader.Page(i)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

var (
	whitespaceRun = regexp.MustCompile(`[ \t\f\v]+`)
	blankLineRun  = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes line endings, collapses runs of spaces within lines and
// keeps at most one blank line between paragraphs.
func CleanText(content string) string {
	if content == "" {
		return ""
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
	}
	content = strings.Join(lines, "\n")
	content = blankLineRun.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
