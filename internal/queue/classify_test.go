package queue

import (
	"fmt"
	"testing"

	"github.com/adjutant-ai/adjutant/internal/providers"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want failureKind
	}{
		{
			name: "401 is auth",
			err:  &providers.HTTPError{Status: 401, Body: `{"type":"authentication_error"}`},
			want: failureAuth,
		},
		{
			name: "403 is auth",
			err:  &providers.HTTPError{Status: 403, Body: `{"type":"permission_error"}`},
			want: failureAuth,
		},
		{
			name: "wrapped auth error still detected",
			err:  fmt.Errorf("turn failed: %w", &providers.HTTPError{Status: 401, Body: "{}"}),
			want: failureAuth,
		},
		{
			name: "400 with JSON body is bad request",
			err:  &providers.HTTPError{Status: 400, Body: `{"type":"invalid_request_error"}`},
			want: failureBadRequest,
		},
		{
			name: "server error is transient",
			err:  &providers.HTTPError{Status: 500, Body: "{}"},
			want: failureTransient,
		},
		{
			name: "overloaded is transient",
			err:  &providers.HTTPError{Status: 529, Body: `{"type":"overloaded_error"}`},
			want: failureTransient,
		},
		{
			name: "network error is transient",
			err:  fmt.Errorf("dial tcp: connection refused"),
			want: failureTransient,
		},
		{
			name: "plain 400 without body marker is transient",
			err:  fmt.Errorf("unexpected status 400"),
			want: failureTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
