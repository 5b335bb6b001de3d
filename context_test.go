package multident

import (
	"context"
	"testing"

	"github.com/iov-one/multident/errors"
)

func TestBlockTime(t *testing.T) {
	bg := context.Background()

	if _, ok := BlockTime(bg); ok {
		t.Fatal("unexpected block time on an empty context")
	}
	if _, err := MustBlockTime(bg); !errors.ErrHuman.Is(err) {
		t.Fatalf("want coding error, got %+v", err)
	}

	ctx := WithBlockTime(bg, 12345)
	got, ok := BlockTime(ctx)
	if !ok || got != 12345 {
		t.Fatalf("unexpected block time: %d %v", got, ok)
	}
}

func TestHeight(t *testing.T) {
	ctx := WithHeight(context.Background(), 42)
	h, ok := GetHeight(ctx)
	if !ok || h != 42 {
		t.Fatalf("unexpected height: %d %v", h, ok)
	}
	if _, ok := GetHeight(context.Background()); ok {
		t.Fatal("unexpected height on an empty context")
	}
}

func TestGetLoggerFallback(t *testing.T) {
	if GetLogger(context.Background()) == nil {
		t.Fatal("expected the default logger")
	}
	ctx := WithLogInfo(context.Background(), "module", "test")
	if GetLogger(ctx) == nil {
		t.Fatal("expected a logger")
	}
}

func TestIsExpired(t *testing.T) {
	ctx := WithBlockTime(context.Background(), 1000)

	cases := map[string]struct {
		at      UnixMillis
		expired bool
	}{
		"zero never expires":   {at: 0, expired: false},
		"in the future":        {at: 2000, expired: false},
		"exactly now is valid": {at: 1000, expired: false},
		"in the past":          {at: 999, expired: true},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			expired, err := IsExpired(ctx, tc.at)
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if expired != tc.expired {
				t.Fatalf("want %v, got %v", tc.expired, expired)
			}
		})
	}
}

func TestIsExpiredRequiresBlockTime(t *testing.T) {
	if _, err := IsExpired(context.Background(), 5); !errors.ErrHuman.Is(err) {
		t.Fatalf("want coding error, got %+v", err)
	}
}
