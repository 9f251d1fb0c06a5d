package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stagium/backend/internal/data/repos/testutil"
)

type cannedExtractor struct {
	text string
	err  error
}

func (e cannedExtractor) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	return e.text, e.err
}

func newTestValidator(t *testing.T, extractor TextExtractor) DocRefValidator {
	t.Helper()
	return NewDocRefValidator(testutil.Logger(t), extractor)
}

func TestExtractReferenceStructuredForm(t *testing.T) {
	v := newTestValidator(t, cannedExtractor{})
	cases := []struct {
		name string
		text string
		want string
	}{
		{"plain", "Réf. Système: NS/1234 2024", "NS/12342024"},
		{"ascii accents", "Ref systeme NS/0042 2024", "NS/00422024"},
		{"lowercase token normalized", "réf. système : ns/777 2023 suite du texte", "NS/7772023"},
		{"split across layout", "Réf.\nSystème:\nNS/1234\n2024", "NS/12342024"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.ExtractReference(tc.text); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractReferenceGenericFallback(t *testing.T) {
	v := newTestValidator(t, cannedExtractor{})
	got := v.ExtractReference("Voir Réf. Système: ABC-99/X pour la suite")
	if got != "ABC-99/X" {
		t.Fatalf("got %q, want ABC-99/X", got)
	}
}

func TestExtractReferenceNoMatch(t *testing.T) {
	v := newTestValidator(t, cannedExtractor{})
	if got := v.ExtractReference("document sans aucune reference"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestValidateMatch(t *testing.T) {
	v := newTestValidator(t, cannedExtractor{text: "Réf. Système: NS/1234 2024"})
	check := v.Validate(context.Background(), []byte("%PDF"), "ns/1234 2024")
	if !check.Valid {
		t.Fatalf("expected valid, got reason %q (extracted %q, expected %q)", check.Reason, check.Extracted, check.Expected)
	}
}

func TestValidateMismatch(t *testing.T) {
	v := newTestValidator(t, cannedExtractor{text: "Réf. Système: NS/1234 2024"})
	check := v.Validate(context.Background(), []byte("%PDF"), "NS/9999 2024")
	if check.Valid || check.Reason != RefReasonMismatch {
		t.Fatalf("expected mismatch, got %+v", check)
	}
	if check.Extracted != "NS/12342024" || check.Expected != "NS/99992024" {
		t.Fatalf("diagnostics not carried: %+v", check)
	}
}

func TestValidateNotFound(t *testing.T) {
	v := newTestValidator(t, cannedExtractor{text: "aucune reference ici"})
	check := v.Validate(context.Background(), []byte("%PDF"), "NS/1234 2024")
	if check.Valid || check.Reason != RefReasonNotFound {
		t.Fatalf("expected not_found, got %+v", check)
	}
}

func TestValidateParseError(t *testing.T) {
	v := newTestValidator(t, cannedExtractor{err: errors.New("corrupt xref table")})
	check := v.Validate(context.Background(), []byte("garbage"), "NS/1234 2024")
	if check.Valid || check.Reason != RefReasonParseError {
		t.Fatalf("expected parse_error, got %+v", check)
	}
}
