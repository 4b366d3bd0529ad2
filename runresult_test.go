package jobqueue_test

import (
	"testing"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

func TestRunResult_Codes(t *testing.T) {
	tests := []struct {
		res       jobqueue.RunResult
		code      int
		name      string
		terminal  bool
		retryable bool
	}{
		{jobqueue.RunResultSuccess, 1, "success", true, false},
		{jobqueue.RunResultFailRunLimit, 2, "fail_run_limit", true, false},
		{jobqueue.RunResultFailForCancel, 3, "fail_for_cancel", true, false},
		{jobqueue.RunResultTryAgain, 4, "try_again", false, true},
		{jobqueue.RunResultFailShouldReRun, 5, "fail_should_re_run", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if int(tt.res) != tt.code {
				t.Errorf("code = %d, want %d", int(tt.res), tt.code)
			}
			if got := tt.res.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.res.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.res.Retryable(); got != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestRunResult_UnknownCode(t *testing.T) {
	r := jobqueue.RunResult(99)
	if r.String() != "unknown" {
		t.Errorf("String() = %q, want %q", r.String(), "unknown")
	}
	if r.Terminal() {
		t.Error("unknown code should not be terminal")
	}
	if r.Retryable() {
		t.Error("unknown code should not be retryable")
	}
}
