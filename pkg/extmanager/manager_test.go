// SPDX-License-Identifier: MPL-2.0

package extmanager

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/invowk/extman/internal/dag"
	"github.com/invowk/extman/pkg/extension"
)

type (
	// countingSource counts enumerations.
	countingSource struct {
		modules []extension.Module
		err     error
		calls   atomic.Int32
	}

	BlogPublisher struct{}

	BlogHelper struct{}
)

func (BlogPublisher) FeatureMarker() extension.TypeMarker {
	return extension.TypeMarker{Feature: "Blog.Publishing"}
}

func (s *countingSource) Modules(context.Context) ([]extension.Module, error) {
	s.calls.Add(1)
	return s.modules, s.err
}

// module builds a single-feature extension; the feature id equals the extension id.
func module(id string, deps ...string) extension.Module {
	return extension.NewModule(extension.Manifest{ID: id, Dependencies: deps}, "handle:"+id)
}

// featureIDs accepts a query result directly: featureIDs(t)(m.GetFeatures(ctx)).
func featureIDs(t *testing.T) func([]*extension.Feature, error) []string {
	return func(features []*extension.Feature, err error) []string {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return extension.IDs(features)
	}
}

func extensionIDs(t *testing.T) func([]*extension.Extension, error) []string {
	return func(exts []*extension.Extension, err error) []string {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids := make([]string, len(exts))
		for i, e := range exts {
			ids[i] = e.ID
		}
		return ids
	}
}

func chainManager(opts ...Option) *Manager {
	return New(extension.StaticSource{module("Z", "Y"), module("X"), module("Y", "X")}, opts...)
}

func TestManager_CanonicalOrder(t *testing.T) {
	t.Parallel()

	m := chainManager()
	got := featureIDs(t)(m.GetFeatures(t.Context()))
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, got); diff != "" {
		t.Errorf("GetFeatures() mismatch (-want +got):\n%s", diff)
	}

	gotExt := extensionIDs(t)(m.GetExtensions(t.Context()))
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, gotExt); diff != "" {
		t.Errorf("GetExtensions() mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_TieBreakByID(t *testing.T) {
	t.Parallel()

	m := New(extension.StaticSource{module("b"), module("a")})
	got := featureIDs(t)(m.GetFeatures(t.Context()))
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("GetFeatures() mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_Closures(t *testing.T) {
	t.Parallel()

	m := chainManager()

	deps := featureIDs(t)(m.GetFeatureDependencies(t.Context(), "Z"))
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, deps); diff != "" {
		t.Errorf("GetFeatureDependencies(Z) mismatch (-want +got):\n%s", diff)
	}

	dependents := featureIDs(t)(m.GetDependentFeatures(t.Context(), "X"))
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, dependents); diff != "" {
		t.Errorf("GetDependentFeatures(X) mismatch (-want +got):\n%s", diff)
	}

	leaf := featureIDs(t)(m.GetDependentFeatures(t.Context(), "Z"))
	if diff := cmp.Diff([]string{"Z"}, leaf); diff != "" {
		t.Errorf("GetDependentFeatures(Z) mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_FilteredLoad(t *testing.T) {
	t.Parallel()

	m := chainManager()

	got := featureIDs(t)(m.GetFeaturesByID(t.Context(), []string{"Z"}))
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, got); diff != "" {
		t.Errorf("GetFeaturesByID(Z) mismatch (-want +got):\n%s", diff)
	}

	features, err := m.LoadFeaturesByIDAsync(t.Context(), []string{"Y", "nope"}).Get(t.Context())
	if diff := cmp.Diff([]string{"X", "Y"}, featureIDs(t)(features, err)); diff != "" {
		t.Errorf("LoadFeaturesByIDAsync(Y, nope) mismatch (-want +got):\n%s", diff)
	}

	all, err := m.LoadFeaturesAsync(t.Context()).Get(t.Context())
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, featureIDs(t)(all, err)); diff != "" {
		t.Errorf("LoadFeaturesAsync() mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_FilteredLoadWithoutIDs(t *testing.T) {
	t.Parallel()

	m := chainManager()
	var enabled []string

	tests := []struct {
		name string
		ids  []string
	}{
		{"nil ids", enabled},
		{"empty ids", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := m.GetFeaturesByID(t.Context(), tt.ids)
			if err != nil {
				t.Fatal(err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("GetFeaturesByID(%v) = %v, want an empty non-nil slice", tt.ids, got)
			}

			async, err := m.LoadFeaturesByIDAsync(t.Context(), tt.ids).Get(t.Context())
			if err != nil || len(async) != 0 {
				t.Errorf("LoadFeaturesByIDAsync(%v) = %v, %v; want empty", tt.ids, async, err)
			}
		})
	}
}

func TestManager_NotFound(t *testing.T) {
	t.Parallel()

	m := chainManager()
	ctx := t.Context()

	ext, err := m.GetExtension(ctx, "missing-ext")
	if err != nil {
		t.Fatal(err)
	}
	if ext.ID != "missing-ext" || ext.Found || ext.Features == nil || len(ext.Features) != 0 {
		t.Errorf("GetExtension(missing-ext) = %+v, want NotFound placeholder", ext)
	}

	for _, call := range []func(context.Context, string) ([]*extension.Feature, error){
		m.GetFeatureDependencies, m.GetDependentFeatures,
	} {
		got, err := call(ctx, "missing")
		if err != nil || got == nil || len(got) != 0 {
			t.Errorf("closure of unknown id = %v, %v; want empty slice", got, err)
		}
	}

	entry, err := m.LoadExtensionAsync(ctx, ext).Get(ctx)
	if err != nil || entry != nil {
		t.Errorf("LoadExtensionAsync(NotFound) = %v, %v; want nil, nil", entry, err)
	}

	if _, ok, err := m.GetFeature(ctx, "missing"); ok || err != nil {
		t.Errorf("GetFeature(missing) = %v, %v", ok, err)
	}
}

func TestManager_LoadExtensionAsync(t *testing.T) {
	t.Parallel()

	m := chainManager()
	ext, err := m.GetExtension(t.Context(), "Y")
	if err != nil {
		t.Fatal(err)
	}
	if !ext.Found {
		t.Fatal("extension Y should be found")
	}

	f := m.LoadExtensionAsync(t.Context(), ext)
	select {
	case <-f.Done():
	default:
		t.Fatal("future should already be complete")
	}
	entry, err := f.Get(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if entry.Extension != ext || entry.Handle != "handle:Y" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestManager_ExtensionOrderFollowsEarliestFeature(t *testing.T) {
	t.Parallel()

	// M declares M.two before M.one, but M.one is the earliest in canonical order.
	// N.one depends on M.one and M.two depends on N.one.
	src := extension.StaticSource{
		extension.NewModule(extension.Manifest{ID: "N", Features: []extension.FeatureManifest{
			{ID: "N.one", Dependencies: []string{"M.one"}},
		}}, nil),
		extension.NewModule(extension.Manifest{ID: "M", Features: []extension.FeatureManifest{
			{ID: "M.two", Dependencies: []string{"N.one"}},
			{ID: "M.one"},
		}}, nil),
		extension.NewModule(extension.Manifest{ID: "A", Features: []extension.FeatureManifest{
			{ID: "A.late", Dependencies: []string{"M.two"}},
		}}, nil),
	}
	m := New(src)

	gotFeatures := featureIDs(t)(m.GetFeatures(t.Context()))
	if diff := cmp.Diff([]string{"M.one", "N.one", "M.two", "A.late"}, gotFeatures); diff != "" {
		t.Errorf("GetFeatures() mismatch (-want +got):\n%s", diff)
	}
	gotExt := extensionIDs(t)(m.GetExtensions(t.Context()))
	if diff := cmp.Diff([]string{"M", "N", "A"}, gotExt); diff != "" {
		t.Errorf("GetExtensions() mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_TypeBinding(t *testing.T) {
	t.Parallel()

	blog := extension.NewModule(extension.Manifest{ID: "Blog", Features: []extension.FeatureManifest{
		{ID: "Blog.Publishing"},
		{ID: "Blog.Feeds"},
	}}, nil, reflect.TypeFor[BlogPublisher](), reflect.TypeFor[BlogHelper]())
	m := New(extension.StaticSource{blog})
	ctx := t.Context()

	tagged, err := m.FeaturesForType(ctx, reflect.TypeFor[BlogPublisher]())
	if diff := cmp.Diff([]string{"Blog.Publishing"}, featureIDs(t)(tagged, err)); diff != "" {
		t.Errorf("tagged type mismatch (-want +got):\n%s", diff)
	}

	untagged, err := m.FeaturesForType(ctx, reflect.TypeFor[BlogHelper]())
	if diff := cmp.Diff([]string{"Blog.Publishing", "Blog.Feeds"}, featureIDs(t)(untagged, err)); diff != "" {
		t.Errorf("untagged type mismatch (-want +got):\n%s", diff)
	}

	types, err := m.TypesForFeature(ctx, "Blog.Feeds")
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 1 || types[0] != reflect.TypeFor[BlogHelper]() {
		t.Errorf("TypesForFeature(Blog.Feeds) = %v", types)
	}
}

func TestManager_InitializesOnce(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	src := &countingSource{modules: []extension.Module{module("X"), module("Y", "X")}}
	m := New(src, WithTracer(tp.Tracer("test")), WithMaxParallelism(2))

	const callers = 64
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			var err error
			if i%2 == 0 {
				err = m.EnsureInitialized(t.Context())
			} else {
				var features []*extension.Feature
				features, err = m.GetFeatures(t.Context())
				if err == nil && len(features) != 2 {
					err = errors.New("observed a partial feature list")
				}
			}
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("caller failed: %v", err)
		}
	}
	if err := m.EnsureInitialized(t.Context()); err != nil {
		t.Fatal(err)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("module source enumerated %d times, want 1", got)
	}

	initSpans := 0
	for _, s := range recorder.Ended() {
		if s.Name() == "extmanager.Initialize" {
			initSpans++
		}
	}
	if initSpans != 1 {
		t.Errorf("got %d initialization spans, want 1", initSpans)
	}
}

func TestManager_FailureIsSticky(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	src := &countingSource{err: boom}
	m := New(src)

	err1 := m.EnsureInitialized(t.Context())
	if !errors.Is(err1, boom) {
		t.Fatalf("EnsureInitialized() = %v, want wrapped boom", err1)
	}
	_, err2 := m.GetExtensions(t.Context())
	if err2 != err1 {
		t.Errorf("second call returned %v, want the same error %v", err2, err1)
	}
	if f := m.LoadExtensionAsync(t.Context(), extension.NotFound("x")); f == nil {
		t.Fatal("nil future")
	} else if _, err := f.Get(t.Context()); err != err1 {
		t.Errorf("LoadExtensionAsync error = %v, want %v", err, err1)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("module source enumerated %d times, want 1", got)
	}
}

func TestManager_FatalConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		source  extension.StaticSource
		wantErr error
	}{
		{
			name:    "dependency cycle",
			source:  extension.StaticSource{module("a", "b"), module("b", "a")},
			wantErr: dag.ErrDependencyCycle,
		},
		{
			name: "duplicate feature id",
			source: extension.StaticSource{
				extension.NewModule(extension.Manifest{ID: "one", Features: []extension.FeatureManifest{{ID: "shared"}}}, nil),
				extension.NewModule(extension.Manifest{ID: "two", Features: []extension.FeatureManifest{{ID: "shared"}}}, nil),
			},
			wantErr: extension.ErrDuplicateFeature,
		},
		{
			name:    "duplicate extension id",
			source:  extension.StaticSource{module("same"), module("same")},
			wantErr: extension.ErrDuplicateExtension,
		},
		{
			name:    "invalid module name",
			source:  extension.StaticSource{extension.NewModule(extension.Manifest{}, nil)},
			wantErr: ErrInvalidModuleName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := New(tt.source).EnsureInitialized(t.Context())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("EnsureInitialized() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	var cycleErr *dag.CycleError
	err := New(extension.StaticSource{module("a", "b"), module("b", "a")}).EnsureInitialized(t.Context())
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *dag.CycleError, got %T", err)
	}
}

func TestManager_Diagnostics(t *testing.T) {
	t.Parallel()

	noManifest := module("ghost")
	noManifest.ManifestExists = false

	empty := extension.NewModule(extension.Manifest{ID: "Empty"}, nil)
	provider := extension.FeaturesProviderFunc(func(ext *extension.Extension, mf extension.Manifest) []*extension.Feature {
		if ext.ID == "Empty" {
			return nil
		}
		return extension.ManifestFeaturesProvider{}.Features(ext, mf)
	})

	m := New(extension.StaticSource{module("b", "missing"), noManifest, empty, module("a")},
		WithFeaturesProvider(provider))
	ctx := t.Context()

	gotExt := extensionIDs(t)(m.GetExtensions(ctx))
	if diff := cmp.Diff([]string{"a", "b", "Empty"}, gotExt); diff != "" {
		t.Errorf("GetExtensions() mismatch (-want +got):\n%s", diff)
	}

	emptyExt, err := m.GetExtension(ctx, "Empty")
	if err != nil || !emptyExt.Found || emptyExt.Features == nil {
		t.Errorf("GetExtension(Empty) = %+v, %v", emptyExt, err)
	}

	diags, err := m.Diagnostics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	codes := make([]extension.DiagnosticCode, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
	}
	want := []extension.DiagnosticCode{
		extension.CodeManifestMissing,
		extension.CodeExtensionWithoutFeatures,
		extension.CodeUnknownDependency,
	}
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Errorf("diagnostic codes mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_Strategies(t *testing.T) {
	t.Parallel()

	theme := extension.NewModule(extension.Manifest{ID: "AaTheme", Type: extension.TypeTheme}, nil)
	src := extension.StaticSource{theme, module("Core"), module("Blog")}

	boostBlog := extension.PriorityStrategyFunc(func(f *extension.Feature) int {
		if f.ID == "Blog" {
			return 1
		}
		return 0
	})
	m := New(src,
		WithDependencyStrategies(extension.ThemeDependencyStrategy{}),
		WithPriorityStrategies(extension.ManifestPriorityStrategy{}, boostBlog),
	)

	got := featureIDs(t)(m.GetFeatures(t.Context()))
	if diff := cmp.Diff([]string{"Core", "Blog", "AaTheme"}, got); diff != "" {
		t.Errorf("GetFeatures() mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_ExtraStrategiesKeepDeclaredDependencies(t *testing.T) {
	t.Parallel()

	// The id baseline puts "Aa" first; its declared dependency on "Zz" must
	// still win when the only extra strategy adds no edges.
	src := extension.StaticSource{module("Aa", "Zz"), module("Zz")}
	never := extension.DependencyStrategyFunc(func(_, _ *extension.Feature) bool { return false })

	m := New(src, WithDependencyStrategies(never))
	got := featureIDs(t)(m.GetFeatures(t.Context()))
	if diff := cmp.Diff([]string{"Zz", "Aa"}, got); diff != "" {
		t.Errorf("GetFeatures() mismatch (-want +got):\n%s", diff)
	}

	deps := featureIDs(t)(m.GetFeatureDependencies(t.Context(), "Aa"))
	if diff := cmp.Diff([]string{"Zz", "Aa"}, deps); diff != "" {
		t.Errorf("GetFeatureDependencies(Aa) mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_ReturnedSlicesAreCopies(t *testing.T) {
	t.Parallel()

	m := chainManager()
	first, err := m.GetFeatures(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	first[0] = nil

	second := featureIDs(t)(m.GetFeatures(t.Context()))
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, second); diff != "" {
		t.Errorf("canonical order was mutated (-want +got):\n%s", diff)
	}
}

func TestManager_CanceledFirstCallerDoesNotPoisonManager(t *testing.T) {
	t.Parallel()

	src := &countingSource{modules: []extension.Module{module("X"), module("Y", "X"), module("Z", "Y")}}
	m := New(src)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := m.EnsureInitialized(ctx); err != nil {
		t.Fatalf("EnsureInitialized(canceled) = %v, want initialization to run to completion", err)
	}

	got := featureIDs(t)(m.GetFeatures(t.Context()))
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, got); diff != "" {
		t.Errorf("GetFeatures() mismatch (-want +got):\n%s", diff)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source enumerated %d times, want 1", n)
	}
}

func TestFuture_GetHonorsContext(t *testing.T) {
	t.Parallel()

	pending := &Future[int]{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := pending.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() = %v, want context.Canceled", err)
	}

	v, err := completed(7, nil).Get(ctx)
	if v != 7 || err != nil {
		t.Errorf("completed future Get() = %d, %v; want 7 even with a canceled context", v, err)
	}
}
