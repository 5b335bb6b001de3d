package errors

import (
	"fmt"
	"testing"
)

func TestRegisterRejectsReusedCode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("panic expected")
		}
	}()
	Register(ErrNotFound.code, "clash")
}

func TestErrorIs(t *testing.T) {
	cases := map[string]struct {
		kind *Error
		err  error
		want bool
	}{
		"instance of the same root": {
			kind: ErrNotFound,
			err:  ErrNotFound,
			want: true,
		},
		"wrapped instance": {
			kind: ErrNotFound,
			err:  Wrap(ErrNotFound, "gone"),
			want: true,
		},
		"deeply wrapped": {
			kind: ErrNotFound,
			err:  Wrap(Wrap(ErrNotFound, "inner"), "outer"),
			want: true,
		},
		"different root": {
			kind: ErrNotFound,
			err:  ErrState,
			want: false,
		},
		"wrapped different root": {
			kind: ErrNotFound,
			err:  Wrap(ErrState, "invalid"),
			want: false,
		},
		"stdlib error": {
			kind: ErrNotFound,
			err:  fmt.Errorf("not found"),
			want: false,
		},
		"nil kind against nil error": {
			kind: nil,
			err:  nil,
			want: true,
		},
		"root against nil error": {
			kind: ErrNotFound,
			err:  nil,
			want: false,
		},
		"member of a multi error": {
			kind: ErrNotFound,
			err:  Append(Wrap(ErrState, "a"), Wrap(ErrNotFound, "b")),
			want: true,
		},
		"no member of a multi error": {
			kind: ErrNotFound,
			err:  Append(Wrap(ErrState, "a"), Wrap(ErrInput, "b")),
			want: false,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := tc.kind.Is(tc.err); got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(nil, "whatever") != nil {
		t.Fatal("wrapping nil must return nil")
	}
	if Wrapf(nil, "whatever %d", 1) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestWrapMessageChain(t *testing.T) {
	err := Wrap(Wrap(ErrNotFound, "inner"), "outer")
	want := "outer: inner: not found"
	if got := err.Error(); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestWrapAttachesStackTraceOnce(t *testing.T) {
	inner := Wrap(ErrNotFound, "inner")
	st := stackTrace(inner)
	if st == nil {
		t.Fatal("no stack trace attached")
	}
	outer := Wrap(inner, "outer")
	if fmt.Sprintf("%v", stackTrace(outer)) != fmt.Sprintf("%v", st) {
		t.Fatal("outer wrap must reuse the inner stack trace")
	}
}

func TestNew(t *testing.T) {
	err := ErrNotFound.New("the thing")
	if !ErrNotFound.Is(err) {
		t.Fatalf("unexpected kind: %+v", err)
	}
	err = ErrNotFound.Newf("the thing %d", 42)
	if !ErrNotFound.Is(err) {
		t.Fatalf("unexpected kind: %+v", err)
	}
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		panic("boom")
	}
	if err := run(); !ErrPanic.Is(err) {
		t.Fatalf("want panic error, got %+v", err)
	}
}
