// Package contract holds reusable checks every verification method must pass.
package contract

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/models"
	id "loankyc/pkg/domain"
)

// reportTimeout bounds how long a contract test waits for an asynchronous outcome.
const reportTimeout = 5 * time.Second

// ContractTest runs one method to completion with the given inputs and expects success.
type ContractTest struct {
	Name         string
	Method       methods.Method
	Inputs       map[string]string
	ValidateFunc func(result *models.VerificationResult) error
}

// ContractSuite is a collection of success-path contract tests.
type ContractSuite struct {
	Tests []ContractTest
}

// Run executes all contract tests in the suite.
func (s *ContractSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			rec := newRecorder()
			attempt := newAttempt(test.Method.ID(), test.Inputs, rec)

			if err := test.Method.Begin(context.Background(), attempt); err != nil {
				t.Fatalf("begin failed: %v", err)
			}
			outcome := rec.wait(t)

			if outcome.AttemptID != attempt.ID {
				t.Errorf("outcome tagged with attempt %s, want %s", outcome.AttemptID, attempt.ID)
			}
			if !outcome.OK {
				t.Fatalf("expected success, got failure %q", outcome.Reason)
			}
			if err := outcome.Result.Validate(); err != nil {
				t.Fatalf("result fails validation: %v", err)
			}
			prefix := test.Method.Describe().ResultPrefix
			if prefix == "" || !strings.HasPrefix(outcome.Result.VerificationID, prefix) {
				t.Errorf("verification id %q lacks prefix %q", outcome.Result.VerificationID, prefix)
			}
			if outcome.Result.Timestamp.IsZero() {
				t.Error("timestamp not set")
			}
			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(outcome.Result); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
			rec.assertSingle(t)
		})
	}
}

// StartErrorTest expects Begin to refuse the inputs with a categorized error
// and report nothing.
type StartErrorTest struct {
	Name             string
	Method           methods.Method
	Inputs           map[string]string
	ExpectedCategory methods.FailureCategory
}

func (et *StartErrorTest) Run(t *testing.T) {
	rec := newRecorder()
	err := et.Method.Begin(context.Background(), newAttempt(et.Method.ID(), et.Inputs, rec))
	if err == nil {
		t.Fatal("expected begin to fail")
	}
	if got := methods.CategoryOf(err); got != et.ExpectedCategory {
		t.Errorf("expected category %s, got %s", et.ExpectedCategory, got)
	}
	if n := rec.count(); n != 0 {
		t.Errorf("method reported %d outcomes after refusing to start", n)
	}
}

// FailureTest expects the method to start and then report a failure with Reason.
type FailureTest struct {
	Name   string
	Method methods.Method
	Inputs map[string]string
	Reason string
}

func (ft *FailureTest) Run(t *testing.T) {
	rec := newRecorder()
	if err := ft.Method.Begin(context.Background(), newAttempt(ft.Method.ID(), ft.Inputs, rec)); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	outcome := rec.wait(t)
	if outcome.OK {
		t.Fatal("expected failure outcome")
	}
	if outcome.Reason != ft.Reason {
		t.Errorf("expected reason %q, got %q", ft.Reason, outcome.Reason)
	}
	rec.assertSingle(t)
}

// DescriptorTest validates that a method describes itself completely.
type DescriptorTest struct {
	Method methods.Method
}

func (dt *DescriptorTest) Run(t *testing.T) {
	d := dt.Method.Describe()
	if d.ID != dt.Method.ID() {
		t.Errorf("descriptor id %s does not match method id %s", d.ID, dt.Method.ID())
	}
	if d.Label == "" {
		t.Error("label not set")
	}
	if !strings.HasSuffix(d.ResultPrefix, "-") {
		t.Errorf("result prefix %q must end with a dash", d.ResultPrefix)
	}
	if len(d.Inputs) == 0 {
		t.Error("no inputs declared")
	}
}

type recorder struct {
	mu       sync.Mutex
	outcomes []models.Outcome
	ch       chan models.Outcome
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan models.Outcome, 4)}
}

func (r *recorder) report(_ context.Context, o models.Outcome) (bool, error) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
	r.ch <- o
	return true, nil
}

func (r *recorder) wait(t *testing.T) models.Outcome {
	t.Helper()
	select {
	case o := <-r.ch:
		return o
	case <-time.After(reportTimeout):
		t.Fatal("method never reported an outcome")
		return models.Outcome{}
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

func (r *recorder) assertSingle(t *testing.T) {
	t.Helper()
	if n := r.count(); n != 1 {
		t.Errorf("expected exactly one outcome, got %d", n)
	}
}

func newAttempt(mid id.MethodID, inputs map[string]string, rec *recorder) *methods.Attempt {
	return methods.NewAttempt(
		id.NewAttemptID(),
		mid,
		methods.Subject{ApplicantID: id.NewApplicantID(), DisplayName: "Rajesh Kumar"},
		inputs,
		time.Now(),
		rec.report,
	)
}
