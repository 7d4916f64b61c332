package worldboss

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/mcdev12/bosswatch/go/clients"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Classification
	}{
		{
			name:   "active window",
			status: http.StatusOK,
			body:   `{"status":"active","start_time":1000,"end_time":1010}`,
			want:   Classification{Kind: ClassActive, Window: EventWindow{Start: 1000, End: 1010}},
		},
		{
			name:   "active window with fractional seconds",
			status: http.StatusOK,
			body:   `{"status":"active","start_time":1000.4,"end_time":1900.9}`,
			want:   Classification{Kind: ClassActive, Window: EventWindow{Start: 1000, End: 1900}},
		},
		{
			name:   "inactive status",
			status: http.StatusOK,
			body:   `{"status":"inactive"}`,
			want:   Classification{Kind: ClassInactive},
		},
		{
			name:   "no boss message",
			status: http.StatusOK,
			body:   `{"message":"No wb active"}`,
			want:   Classification{Kind: ClassInactive},
		},
		{
			name:   "legacy no event message",
			status: http.StatusOK,
			body:   `{"message":"No active event"}`,
			want:   Classification{Kind: ClassInactive},
		},
		{
			name:   "active missing end",
			status: http.StatusOK,
			body:   `{"status":"active","start_time":1000}`,
			want:   Classification{Kind: ClassMalformed},
		},
		{
			name:   "active with end before start",
			status: http.StatusOK,
			body:   `{"status":"active","start_time":2000,"end_time":1000}`,
			want:   Classification{Kind: ClassMalformed},
		},
		{
			name:   "active with zero start",
			status: http.StatusOK,
			body:   `{"status":"active","start_time":0,"end_time":1010}`,
			want:   Classification{Kind: ClassMalformed},
		},
		{
			name:   "active with zero end",
			status: http.StatusOK,
			body:   `{"status":"active","start_time":1000,"end_time":0}`,
			want:   Classification{Kind: ClassMalformed},
		},
		{
			name:   "unknown status",
			status: http.StatusOK,
			body:   `{"status":"paused"}`,
			want:   Classification{Kind: ClassMalformed},
		},
		{
			name:   "unknown message",
			status: http.StatusOK,
			body:   `{"message":"something else"}`,
			want:   Classification{Kind: ClassMalformed},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `<html>oops</html>`,
			want:   Classification{Kind: ClassMalformed},
		},
		{
			name:   "server error with valid body",
			status: http.StatusInternalServerError,
			body:   `{"status":"active","start_time":1000,"end_time":1010}`,
			want:   Classification{Kind: ClassMalformed},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"message":"No wb active"}`,
			want:   Classification{Kind: ClassMalformed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, []byte(tt.body))
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(Classification{}, "Err")); diff != "" {
				t.Errorf("Classify mismatch (-want +got):\n%s", diff)
			}
			if got.Kind == ClassMalformed && got.Err == nil {
				t.Error("Expected malformed classification to carry an error")
			}
		})
	}
}

func TestClassifyFetch_FailureIsNeverPropagated(t *testing.T) {
	got := classifyFetch(nil, clients.ErrSessionExpired)
	if got.Kind != ClassFailed {
		t.Errorf("Expected ClassFailed, got %s", got.Kind)
	}
	if !errors.Is(got.Err, clients.ErrSessionExpired) {
		t.Errorf("Expected the fetch error to be kept for logging, got %v", got.Err)
	}

	if got := classifyFetch(nil, nil); got.Kind != ClassFailed {
		t.Errorf("Expected ClassFailed for a missing response, got %s", got.Kind)
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{125000, "2:05"},
		{59000, "0:59"},
		{0, "0:00"},
		{999, "0:00"},
		{60000, "1:00"},
		{3600000, "60:00"},
		{6001999, "100:01"},
		{-5000, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.ms); got != tt.want {
			t.Errorf("FormatRemaining(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestEventWindow_Remaining(t *testing.T) {
	w := EventWindow{Start: 1000, End: 1010}

	if got := w.Remaining(time.UnixMilli(1000000)); got != 10*time.Second {
		t.Errorf("Expected 10s remaining at start, got %s", got)
	}
	if got := w.Remaining(time.UnixMilli(1009999)); got != time.Millisecond {
		t.Errorf("Expected 1ms remaining, got %s", got)
	}
	if w.Expired(time.UnixMilli(1009999)) {
		t.Error("Expected window not expired 1ms before end")
	}
	if !w.Expired(time.UnixMilli(1010000)) {
		t.Error("Expected window expired at end")
	}
	if got := w.Remaining(time.UnixMilli(2000000)); got != 0 {
		t.Errorf("Expected remaining clamped to 0, got %s", got)
	}
	if got := remainingMs(nil, time.UnixMilli(0)); got != 0 {
		t.Errorf("Expected 0 for no window, got %d", got)
	}
}
