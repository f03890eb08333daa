package impl

import (
	"bytes"
	"errors"
	"strconv"
	"testing"
)

func TestOTPGeneratorRange(t *testing.T) {
	g := NewOTPGenerator()
	for i := 0; i < 2000; i++ {
		code, err := g.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil || n < otpMin || n > otpMax {
			t.Fatalf("code out of range: %q", code)
		}
	}
}

func TestOTPGeneratorBounds(t *testing.T) {
	// All-zero entropy maps to the lowest code.
	g := &OTPGeneratorImpl{rand: bytes.NewReader(make([]byte, 64))}
	code, err := g.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if code != "100000" {
		t.Fatalf("expected lowest code, got %q", code)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestOTPGeneratorPropagatesEntropyFailure(t *testing.T) {
	g := &OTPGeneratorImpl{rand: failingReader{}}
	if _, err := g.Generate(); err == nil {
		t.Fatal("expected error")
	}
}
