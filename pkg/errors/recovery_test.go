package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSafeExecute(t *testing.T) {
	errNoRows := fmt.Errorf("no rows after cleaning")
	errReset := fmt.Errorf("connection reset")

	tests := []struct {
		name      string
		fn        func() error
		wantErr   error
		wantPanic any
	}{
		{name: "success", fn: func() error { return nil }},
		{name: "returned error passes through", fn: func() error { return errNoRows }, wantErr: errNoRows},
		{name: "string panic", fn: func() error { panic("index out of range") }, wantPanic: "index out of range"},
		{name: "int panic", fn: func() error { panic(42) }, wantPanic: 42},
		{name: "error panic", fn: func() error { panic(errReset) }, wantPanic: errReset, wantErr: errReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("basic_cleaning", tt.fn)

			if tt.wantPanic == nil {
				if err != tt.wantErr {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			var pe *PanicError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *PanicError, got %T", err)
			}
			if pe.Operation != "basic_cleaning" {
				t.Errorf("Operation = %q", pe.Operation)
			}
			if pe.PanicValue != tt.wantPanic {
				t.Errorf("PanicValue = %v, want %v", pe.PanicValue, tt.wantPanic)
			}
			if !strings.Contains(pe.StackTrace, "recovery.go") {
				t.Error("stack trace missing")
			}
			if want := fmt.Sprintf("panic in basic_cleaning: %v", tt.wantPanic); pe.Error() != want {
				t.Errorf("Error() = %q, want %q", pe.Error(), want)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Error("error panic value should be reachable with errors.Is")
			}
		})
	}
}

func TestRecoverKeepsPriorError(t *testing.T) {
	prior := fmt.Errorf("artifact sample.csv:latest not found")

	run := func() (err error) {
		defer Recover(&err, "data_check")
		err = prior
		panic("nil frame")
	}

	err := run()
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if !errors.Is(err, prior) {
		t.Error("prior error lost")
	}
	if !strings.Contains(err.Error(), "panic in data_check: nil frame (after: artifact") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !strings.Contains(pe.String(), "goroutine") {
		t.Error("String() should carry the stack")
	}
}

func TestRecoverWithoutPanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "data_split")
		return nil
	}
	if err := run(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRecoverNilPanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "download")
		panic(nil)
	}
	var pe *PanicError
	if !errors.As(run(), &pe) {
		t.Fatal("panic(nil) should still be reported")
	}
}

func BenchmarkSafeExecute(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("predict", func() error { return nil })
	}
}
