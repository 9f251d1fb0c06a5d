package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/stagium/backend/internal/platform/logger"
)

// Reference check failure reasons.
const (
	RefReasonNotFound   = "not_found"
	RefReasonMismatch   = "mismatch"
	RefReasonParseError = "parse_error"
)

// ReferenceCheck is the outcome of comparing a document's embedded reference
// against the authoritative NoteService value.
type ReferenceCheck struct {
	Valid     bool
	Extracted string
	Expected  string
	Reason    string
}

// TextExtractor turns document bytes into page text. Satisfied by
// doctools.Tools; tests substitute a canned extractor.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdfBytes []byte) (string, error)
}

type DocRefValidator interface {
	ExtractReference(text string) string
	Validate(ctx context.Context, pdfBytes []byte, expected string) ReferenceCheck
}

type docRefValidator struct {
	log       *logger.Logger
	extractor TextExtractor
}

func NewDocRefValidator(log *logger.Logger, extractor TextExtractor) DocRefValidator {
	return &docRefValidator{
		log:       log.With("service", "DocRefValidator"),
		extractor: extractor,
	}
}

// Ordered most specific first: the structured "NS/1234 2024" form wins over the
// generic token fallback. Patterns run against whitespace-collapsed text because
// the token is frequently split across layout fragments.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)r[ée]f\.?\s*syst[èe]me\s*:?\s*(NS\s*/\s*\d{1,6}\s+\d{4})`),
	regexp.MustCompile(`(?i)r[ée]f\.?\s*syst[èe]me\s*:?\s*([A-Z0-9][A-Z0-9/\-]{2,})`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ExtractReference pulls the canonical reference token out of raw document
// text, or returns "" when no pattern matches.
func (v *docRefValidator) ExtractReference(text string) string {
	collapsed := whitespaceRun.ReplaceAllString(text, " ")
	for _, pat := range referencePatterns {
		if m := pat.FindStringSubmatch(collapsed); len(m) > 1 {
			return normalizeReference(m[1])
		}
	}
	return ""
}

func (v *docRefValidator) Validate(ctx context.Context, pdfBytes []byte, expected string) ReferenceCheck {
	check := ReferenceCheck{Expected: normalizeReference(expected)}

	text, err := v.extractor.ExtractText(ctx, pdfBytes)
	if err != nil {
		v.log.Warn("Document text extraction failed", "error", err)
		check.Reason = RefReasonParseError
		return check
	}

	check.Extracted = v.ExtractReference(text)
	if check.Extracted == "" {
		check.Reason = RefReasonNotFound
		return check
	}
	if check.Extracted != check.Expected {
		check.Reason = RefReasonMismatch
		return check
	}
	check.Valid = true
	return check
}

// normalizeReference strips every internal whitespace run and upper-cases, so
// comparison is case- and whitespace-insensitive.
func normalizeReference(ref string) string {
	return strings.ToUpper(whitespaceRun.ReplaceAllString(strings.TrimSpace(ref), ""))
}
