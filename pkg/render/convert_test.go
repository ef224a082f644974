package render

import (
	"context"
	"errors"
	"testing"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"dot", "svg", "pdf", "png"} {
		if f, err := ParseFormat(s); err != nil || string(f) != s {
			t.Errorf("ParseFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseFormat("gif"); !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("ParseFormat(gif) err = %v, want INVALID_INPUT", err)
	}
}

func TestConvertWithoutLibrsvg(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { lookPath = orig }()

	_, err := ToPDF(context.Background(), []byte("<svg/>"))
	if !apperr.Is(err, apperr.ErrCodeUnsupported) {
		t.Errorf("ToPDF err = %v, want UNSUPPORTED", err)
	}
	_, err = ToPNG(context.Background(), []byte("<svg/>"), 2)
	if !apperr.Is(err, apperr.ErrCodeUnsupported) {
		t.Errorf("ToPNG err = %v, want UNSUPPORTED", err)
	}
}
