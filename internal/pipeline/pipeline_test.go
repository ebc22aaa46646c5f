package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/dnsblcheck/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.CheckReport) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, report *model.CheckReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("continueOnError should default to false")
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if p.StepCount() != 3 {
		t.Fatalf("expected 3 steps, got %d", p.StepCount())
	}
	names := p.StepNames()
	want := []string{"first", "second", "third"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("StepNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) *mockStep {
			return &mockStep{
				name: name,
				doFunc: func(_ context.Context, _ *model.CheckReport) error {
					order = append(order, name)
					return nil
				},
			}
		}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(step("retrieve"), step("extract"), step("evaluate"))

		report := model.NewCheckReport("mx.example.com", "http://svc")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"retrieve", "extract", "evaluate"}
		if len(order) != len(want) {
			t.Fatalf("executed %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("step %d = %q, want %q", i, order[i], want[i])
			}
			if report.PerformedSteps[i] != want[i] {
				t.Errorf("PerformedSteps[%d] = %q, want %q", i, report.PerformedSteps[i], want[i])
			}
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("retrieval failed")
		failing := &mockStep{
			name: "retrieve",
			doFunc: func(_ context.Context, _ *model.CheckReport) error {
				return wantErr
			},
		}
		after := &mockStep{name: "extract"}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(failing, after)

		report := model.NewCheckReport("mx.example.com", "http://svc")
		err := p.Execute(context.Background(), report)

		if !errors.Is(err, wantErr) {
			t.Errorf("error = %v, want %v", err, wantErr)
		}
		if after.callCount != 0 {
			t.Error("step after failure should not run")
		}
		if !errors.Is(report.Error, wantErr) {
			t.Errorf("report.Error = %v, want %v", report.Error, wantErr)
		}
		if report.ErrorMessage != wantErr.Error() {
			t.Errorf("report.ErrorMessage = %q", report.ErrorMessage)
		}
		if len(report.PerformedSteps) != 0 {
			t.Errorf("PerformedSteps = %v, want none", report.PerformedSteps)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		first := errors.New("first")
		p := New(WithLogger(discardLogger()), WithContinueOnError(true))
		after := &mockStep{name: "after"}
		p.AddSteps(
			&mockStep{name: "a", doFunc: func(_ context.Context, _ *model.CheckReport) error { return first }},
			&mockStep{name: "b", doFunc: func(_ context.Context, _ *model.CheckReport) error { return errors.New("second") }},
			after,
		)

		report := model.NewCheckReport("mx.example.com", "http://svc")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if after.callCount != 1 {
			t.Error("step after failure should run")
		}
		if !errors.Is(report.Error, first) {
			t.Errorf("report should keep the first error, got %v", report.Error)
		}
		if len(report.PerformedSteps) != 3 {
			t.Errorf("PerformedSteps = %v, want 3 entries", report.PerformedSteps)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{
			name: "first",
			doFunc: func(_ context.Context, _ *model.CheckReport) error {
				cancel()
				return nil
			},
		}
		second := &mockStep{name: "second"}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(first, second)

		report := model.NewCheckReport("mx.example.com", "http://svc")
		err := p.Execute(ctx, report)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if second.callCount != 0 {
			t.Error("second step should not run after cancellation")
		}
		if !report.TimedOut {
			t.Error("report should be marked TimedOut")
		}
		if report.Passed() {
			t.Error("cancelled report must not pass")
		}
	})
}

func TestMockStep(t *testing.T) {
	t.Parallel()

	m := &mockStep{name: "x"}
	if err := m.Do(context.Background(), model.NewCheckReport("h", "")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if m.callCount != 1 {
		t.Errorf("callCount = %d, want 1", m.callCount)
	}
	if m.Name() != "x" {
		t.Errorf("Name() = %q, want x", m.Name())
	}
}
