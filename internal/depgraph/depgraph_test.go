// SPDX-License-Identifier: MPL-2.0

package depgraph

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/invowk/extman/pkg/extension"
)

// chain is X <- Y <- Z plus an unrelated W, in canonical order.
func chain() []*extension.Feature {
	return []*extension.Feature{
		{ID: "W"},
		{ID: "X"},
		{ID: "Y", Dependencies: []string{"X"}},
		{ID: "Z", Dependencies: []string{"Y", "missing"}},
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
		dir  Direction
		want []string
	}{
		{"dependencies of leaf", "Z", Dependencies, []string{"X", "Y", "Z"}},
		{"dependencies of root", "X", Dependencies, []string{"X"}},
		{"dependents of root", "X", Dependents, []string{"X", "Y", "Z"}},
		{"dependents of leaf", "Z", Dependents, []string{"Z"}},
		{"isolated feature", "W", Dependencies, []string{"W"}},
		{"unknown id", "nope", Dependencies, []string{}},
		{"unknown id dependents", "nope", Dependents, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := New(chain())
			got := extension.IDs(r.Resolve(t.Context(), tt.id, tt.dir))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve(%q, %s) mismatch (-want +got):\n%s", tt.id, tt.dir, diff)
			}
		})
	}
}

func TestResolve_ProjectsThroughCanonicalOrder(t *testing.T) {
	t.Parallel()

	// Canonical order deliberately differs from id order and declaration order.
	order := []*extension.Feature{
		{ID: "c"},
		{ID: "a"},
		{ID: "b"},
		{ID: "top", Dependencies: []string{"b", "a", "c"}},
	}
	r := New(order)

	got := extension.IDs(r.Resolve(t.Context(), "top", Dependencies))
	if diff := cmp.Diff([]string{"c", "a", "b", "top"}, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Diamond(t *testing.T) {
	t.Parallel()

	order := []*extension.Feature{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A"}},
		{ID: "C", Dependencies: []string{"A"}},
		{ID: "D", Dependencies: []string{"B", "C"}},
	}
	r := New(order)

	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, extension.IDs(r.Resolve(t.Context(), "D", Dependencies))); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, extension.IDs(r.Resolve(t.Context(), "A", Dependents))); diff != "" {
		t.Errorf("dependents mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B", "D"}, extension.IDs(r.Resolve(t.Context(), "B", Dependents))); diff != "" {
		t.Errorf("dependents mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Memoized(t *testing.T) {
	t.Parallel()

	r := New(chain())
	first := r.Resolve(t.Context(), "Z", Dependencies)
	second := r.Resolve(t.Context(), "Z", Dependencies)

	if &first[0] != &second[0] {
		t.Error("second call should return the cached slice")
	}
	if got := r.Computations(); got != 1 {
		t.Errorf("Computations() = %d, want 1", got)
	}

	r.Resolve(t.Context(), "Z", Dependents)
	if got := r.Computations(); got != 2 {
		t.Errorf("Computations() = %d, want 2 after a new direction", got)
	}

	r.Resolve(t.Context(), "unknown", Dependencies)
	if got := r.Computations(); got != 2 {
		t.Errorf("Computations() = %d, unknown ids should not be cached", got)
	}
}

func TestResolve_ConcurrentFirstRequestsShareComputation(t *testing.T) {
	t.Parallel()

	r := New(chain())

	const workers = 32
	results := make([][]*extension.Feature, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = r.Resolve(t.Context(), "X", Dependents)
		}()
	}
	close(start)
	wg.Wait()

	if got := r.Computations(); got != 1 {
		t.Errorf("Computations() = %d, want 1", got)
	}
	for i, res := range results {
		if diff := cmp.Diff([]string{"X", "Y", "Z"}, extension.IDs(res)); diff != "" {
			t.Errorf("worker %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestUnion(t *testing.T) {
	t.Parallel()

	order := []*extension.Feature{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A"}},
		{ID: "C"},
		{ID: "D", Dependencies: []string{"C"}},
	}
	r := New(order)

	tests := []struct {
		name string
		ids  []string
		want []string
	}{
		{"single", []string{"B"}, []string{"A", "B"}},
		{"disjoint closures", []string{"D", "B"}, []string{"A", "B", "C", "D"}},
		{"overlap is deduplicated", []string{"B", "A", "B"}, []string{"A", "B"}},
		{"unknown ids contribute nothing", []string{"nope", "D"}, []string{"C", "D"}},
		{"no ids", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := extension.IDs(r.Union(t.Context(), tt.ids, Dependencies))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Union(%v) mismatch (-want +got):\n%s", tt.ids, diff)
			}
		})
	}
}

func TestResolve_Tracing(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := New(chain(), WithTracer(tp.Tracer("test")))
	r.Resolve(t.Context(), "Z", Dependencies)
	r.Resolve(t.Context(), "Z", Dependencies)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "depgraph.Resolve" {
		t.Errorf("span name = %q", spans[0].Name())
	}
}

func TestDirection_String(t *testing.T) {
	t.Parallel()

	if Dependencies.String() != "dependencies" || Dependents.String() != "dependents" {
		t.Error("unexpected direction names")
	}
	if Direction(9).String() != "unknown" {
		t.Error("out-of-range direction should be unknown")
	}
}
