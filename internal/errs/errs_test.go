package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("chat not found"), false},
		{&DeliveryError{Kind: DeliveryTransient, Err: errors.New("x")}, true},
		{&DeliveryError{Kind: DeliveryPermanent, Err: errors.New("x")}, false},
		{&DeliveryError{Kind: DeliveryFormatRejected, Err: errors.New("x")}, false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsTransientUnwrapsDeliveryError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("send chunk: %w", &DeliveryError{Kind: DeliveryTransient, Err: errors.New("502")})
	if !IsTransient(wrapped) {
		t.Fatal("wrapped transient delivery error must stay transient")
	}
}

func TestErrorUnwrapping(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	fe := &FetchError{URL: "https://x.ru", Err: inner}
	if !errors.Is(fe, inner) {
		t.Fatal("FetchError must unwrap to the inner error")
	}

	var target *FetchError
	wrapped := fmt.Errorf("scan: %w", fe)
	if !errors.As(wrapped, &target) || target.URL != "https://x.ru" {
		t.Fatal("FetchError must be recoverable through wrapping")
	}
}
