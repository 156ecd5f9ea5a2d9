package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/wippyai/scripthost/boundary"
	serrors "github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/gc"
	"github.com/wippyai/scripthost/host"
	"github.com/wippyai/scripthost/image"
	"github.com/wippyai/scripthost/metadata"
	"github.com/wippyai/scripthost/modules"
	"github.com/wippyai/scripthost/resource"
)

type logs struct {
	mu    sync.Mutex
	lines []string
}

func (l *logs) add(_ host.Level, msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, msg)
	l.mu.Unlock()
}

func (l *logs) count(sub string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			n++
		}
	}
	return n
}

type fixture struct {
	*Manager
	bridge   *host.Bridge
	registry *resource.Registry
	meta     *metadata.Cache
	cache    *modules.Cache
	logs     *logs
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	b := host.New()
	l := &logs{}
	if err := b.Install(l.add, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}
	f := &fixture{
		bridge:   b,
		registry: resource.NewRegistry(),
		meta:     metadata.NewCache(),
		cache:    modules.NewCache(),
		logs:     l,
	}
	col := gc.New(b)
	f.Manager = NewManager(b, f.registry, f.meta, f.cache, col, opts)
	t.Cleanup(func() {
		_ = f.Close(context.Background())
		col.Wait()
	})
	return f
}

func (f *fixture) context(t *testing.T, name string) *Context {
	t.Helper()
	c, err := f.CreateContext(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateContext(%q): %v", name, err)
	}
	return c
}

func TestCreateContext(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	c := f.context(t, "game")
	if !c.Collectible() || c.Unloaded() {
		t.Fatal("new context should be collectible and live")
	}
	if got, ok := f.ContextByName("game"); !ok || got != c {
		t.Fatal("ContextByName did not find the context")
	}

	if _, err := f.CreateContext(ctx, ""); !errors.Is(err, serrors.ErrInvalidName) {
		t.Errorf("empty name: expected InvalidName, got %v", err)
	}
	if _, err := f.CreateContext(ctx, "game"); !errors.Is(err, serrors.ErrInvalidName) {
		t.Errorf("duplicate name: expected InvalidName, got %v", err)
	}
}

func TestCreateContext_NotInstalled(t *testing.T) {
	b := host.New()
	m := NewManager(b, resource.NewRegistry(), metadata.NewCache(), modules.NewCache(), gc.New(b), Options{})
	if _, err := m.CreateContext(context.Background(), "x"); !errors.Is(err, serrors.ErrHostNotInitialized) {
		t.Fatalf("expected HostNotInitialized, got %v", err)
	}
}

func TestLoad_Memory(t *testing.T) {
	f := newFixture(t, Options{})
	c := f.context(t, "game")

	mod, err := f.Load(context.Background(), c.ID, Memory("player", image.Starter("player")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if mod.Name != "player" || !mod.FromMemory() || mod.Context != c.ID {
		t.Errorf("unexpected module: %+v", mod)
	}
	if len(mod.Imports) != 0 {
		t.Errorf("host imports should not count as references: %v", mod.Imports)
	}
	if _, ok := mod.Table.Method("add"); !ok {
		t.Error("descriptor table has no add method")
	}
	if f.LastLoadStatus() != serrors.StatusSuccess {
		t.Errorf("status = %v", f.LastLoadStatus())
	}
	if got, ok := f.Module(mod.ID); !ok || got != mod {
		t.Error("Module lookup by id failed")
	}
	if name, err := f.ModuleName(mod.ID); err != nil || name != "player" {
		t.Errorf("ModuleName = %q, %v", name, err)
	}
	if f.logs.count("loading module") != 1 {
		t.Error("load was not logged")
	}
}

func TestLoad_NameFromImage(t *testing.T) {
	f := newFixture(t, Options{})
	c := f.context(t, "game")

	mod, err := f.Load(context.Background(), c.ID, Source{Bytes: image.Library("mathlib")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if mod.Name != "mathlib" {
		t.Errorf("name = %q, want mathlib", mod.Name)
	}

	_, err = f.Load(context.Background(), c.ID, Source{Bytes: image.New("").Build()})
	if !errors.Is(err, serrors.ErrInvalidSource) {
		t.Errorf("unnamed buffer: expected InvalidSource, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	f := newFixture(t, Options{})
	c := f.context(t, "game")
	dir := t.TempDir()

	path := filepath.Join(dir, "enemy.wasm")
	if err := os.WriteFile(path, image.New("").Build(), 0o644); err != nil {
		t.Fatal(err)
	}
	mod, err := f.Load(context.Background(), c.ID, File(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if mod.Name != "enemy" || mod.Source != path || mod.FromMemory() {
		t.Errorf("unexpected module: name=%q source=%q", mod.Name, mod.Source)
	}
	if srcs := c.Sources(); len(srcs) != 1 || srcs[0].Path != path {
		t.Errorf("sources not recorded: %v", srcs)
	}

	_, err = f.Load(context.Background(), c.ID, File(filepath.Join(dir, "missing.wasm")))
	if !errors.Is(err, serrors.ErrNotFound) {
		t.Errorf("missing file: expected NotFound, got %v", err)
	}
	if f.LastLoadStatus() != serrors.StatusNotFound {
		t.Errorf("status = %v, want not_found", f.LastLoadStatus())
	}
}

func TestLoad_Failures(t *testing.T) {
	f := newFixture(t, Options{})
	c := f.context(t, "game")
	ctx := context.Background()

	tests := []struct {
		name string
		id   boundary.ContextID
		src  Source
		want *serrors.Error
	}{
		{"no source", c.ID, Source{}, serrors.ErrInvalidSource},
		{"both", c.ID, Source{Path: "a.wasm", Bytes: []byte{0}}, serrors.ErrInvalidSource},
		{"garbage", c.ID, Memory("bad", []byte("not wasm")), serrors.ErrInvalidImage},
		{"unknown context", boundary.ContextID(42), Memory("x", image.Library("x")), serrors.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Load(ctx, tt.id, tt.src)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want.Kind, err)
			}
			if f.LastLoadStatus() != serrors.StatusOf(tt.want) {
				t.Errorf("status = %v", f.LastLoadStatus())
			}
		})
	}

	if _, err := f.Load(ctx, c.ID, Memory("lib", image.Library("lib"))); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := f.Load(ctx, c.ID, Memory("lib", image.Library("lib"))); !errors.Is(err, serrors.ErrLoadFailure) {
		t.Errorf("duplicate module: expected LoadFailure, got %v", err)
	}
	if len(c.Modules()) != 1 {
		t.Errorf("failed loads should not add modules, have %d", len(c.Modules()))
	}
}

func TestLoad_CrossContextReference(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	libs := f.context(t, "libs")
	game := f.context(t, "game")

	_, err := f.Load(ctx, game.ID, Memory("ai", image.Dependent("ai", "mathlib")))
	if !errors.Is(err, serrors.ErrUnresolvedReference) {
		t.Fatalf("expected UnresolvedReference, got %v", err)
	}
	if f.LastLoadStatus() != serrors.StatusUnresolvedReference {
		t.Errorf("status = %v", f.LastLoadStatus())
	}

	if _, err := f.Load(ctx, libs.ID, Memory("mathlib", image.Library("mathlib"))); err != nil {
		t.Fatalf("Load lib: %v", err)
	}
	mod, err := f.Load(ctx, game.ID, Memory("ai", image.Dependent("ai", "mathlib")))
	if err != nil {
		t.Fatalf("Load dependent: %v", err)
	}
	if !mod.References("mathlib") {
		t.Errorf("imports = %v", mod.Imports)
	}
}

func TestResolve_Order(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.context(t, "a")
	b := f.context(t, "b")

	inA, err := f.Load(ctx, a.ID, Memory("util", image.Library("util")))
	if err != nil {
		t.Fatal(err)
	}
	inB, err := f.Load(ctx, b.ID, Memory("util", image.Library("util")))
	if err != nil {
		t.Fatal(err)
	}

	// Own context first.
	if got, _ := f.Resolve(a.ID, "util"); got != inA {
		t.Error("a should resolve its own util")
	}
	if got, _ := f.Resolve(b.ID, "util"); got != inB {
		t.Error("b should resolve its own util")
	}

	c := f.context(t, "c")
	// Global cache holds the last registration.
	if got, _ := f.Resolve(c.ID, "util"); got != inB {
		t.Error("c should resolve the cached util from b")
	}

	if _, err := f.Resolve(c.ID, "nothing"); !errors.Is(err, serrors.ErrUnresolvedReference) {
		t.Errorf("expected UnresolvedReference, got %v", err)
	}

	if err := f.Unload(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	// The cache entry went with b; the scan finds a.
	if got, _ := f.Resolve(c.ID, "util"); got != inA {
		t.Error("after unloading b, c should resolve util from a")
	}
}

type token struct{ dropped bool }

func (t *token) Drop() { t.dropped = true }

func TestUnload(t *testing.T) {
	f := newFixture(t, Options{DrainOnUnload: true})
	ctx := context.Background()
	c := f.context(t, "game")

	mod, err := f.Load(ctx, c.ID, Memory("player", image.Starter("player")))
	if err != nil {
		t.Fatal(err)
	}
	tok := &token{}
	h, err := f.registry.Wrap(tok, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.meta.Intern(metadata.Descriptor{Name: "Player", Kind: metadata.KindType}); err != nil {
		t.Fatal(err)
	}

	if err := f.Unload(ctx, c.ID); err != nil {
		t.Fatalf("Unload: %v", err)
	}

	if !c.Unloaded() || !c.Engine().Closed() {
		t.Error("context should be unloaded with its engine closed")
	}
	if _, err := f.registry.Get(h); !errors.Is(err, serrors.ErrInvalidHandle) {
		t.Errorf("owned handle should be released, got %v", err)
	}
	if !tok.dropped {
		t.Error("released value was not dropped")
	}
	if f.logs.count("leaked object") != 1 {
		t.Error("expected one leak warning")
	}
	if f.meta.Len() != 0 {
		t.Error("metadata cache should be cleared")
	}
	if f.cache.Len() != 0 {
		t.Error("module cache should be empty")
	}
	if _, ok := f.Module(mod.ID); ok {
		t.Error("module of unloaded context is still visible")
	}
	if len(f.Contexts()) != 0 {
		t.Error("context still listed")
	}

	if _, err := f.Load(ctx, c.ID, Memory("x", image.Library("x"))); !errors.Is(err, serrors.ErrUnknown) {
		t.Errorf("load into unloaded context: expected UnknownError, got %v", err)
	}

	// Second unload is a logged no-op.
	if err := f.Unload(ctx, c.ID); err != nil {
		t.Errorf("second Unload: %v", err)
	}
	if f.logs.count("cannot unload context") != 1 {
		t.Error("second unload should warn")
	}

	again := f.context(t, "game")
	if again.ID != c.ID {
		t.Error("reused name should map to the same context id")
	}
}

func TestUnload_KeepsOtherContexts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.context(t, "a")
	b := f.context(t, "b")

	if _, err := f.Load(ctx, a.ID, Memory("lib", image.Library("lib"))); err != nil {
		t.Fatal(err)
	}
	h, err := f.registry.Wrap(&token{}, b.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.Unload(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.registry.Get(h); err != nil {
		t.Errorf("handle owned by b should survive: %v", err)
	}
	if mods, err := f.Modules(b.ID); err != nil || len(mods) != 0 {
		t.Errorf("Modules(b) = %v, %v", mods, err)
	}
	if _, err := f.Modules(a.ID); !errors.Is(err, serrors.ErrInvalidID) {
		t.Errorf("Modules of unloaded context: expected InvalidID, got %v", err)
	}
}

func TestLoad_ModuleIDsDistinctAcrossContexts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	xy := f.context(t, "x/y")
	x := f.context(t, "x")

	first, err := f.Load(ctx, xy.ID, Memory("z", image.Library("z")))
	if err != nil {
		t.Fatalf("Load z: %v", err)
	}
	second, err := f.Load(ctx, x.ID, Memory("y/z", image.Library("y/z")))
	if err != nil {
		t.Fatalf("Load y/z: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("modules in different contexts share id %v", first.ID)
	}
	if got, ok := f.Module(first.ID); !ok || got != first {
		t.Errorf("Module(%v) = %v", first.ID, got)
	}
	if got, ok := f.Module(second.ID); !ok || got != second {
		t.Errorf("Module(%v) = %v", second.ID, got)
	}
}

func TestUnload_CacheKeepsSurvivingModule(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.context(t, "a")
	b := f.context(t, "b")

	kept, err := f.Load(ctx, a.ID, Memory("m", image.Library("m")))
	if err != nil {
		t.Fatal(err)
	}
	dropped, err := f.Load(ctx, b.ID, Memory("m", image.Library("m")))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := f.cache.Lookup(kept.NameHash); got != dropped {
		t.Fatalf("cache should hold the newest load, got %v", got)
	}

	if err := f.Unload(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	got, ok := f.cache.Lookup(kept.NameHash)
	if !ok || got != kept {
		t.Fatalf("cache after unload = %v, %v; want module of context a", got, ok)
	}

	if err := f.Unload(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.cache.Lookup(kept.NameHash); ok {
		t.Error("cache should be empty once every owner is unloaded")
	}
}

func TestContexts_CreationOrder(t *testing.T) {
	f := newFixture(t, Options{})
	for _, name := range []string{"c", "a", "b"} {
		f.context(t, name)
	}
	var names []string
	for _, c := range f.Contexts() {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "c,a,b" {
		t.Errorf("order = %v", names)
	}
}

type stubBinder struct {
	bound []string
	fail  error
}

func (s *stubBinder) Bind(_ context.Context, c *Context) error {
	if s.fail != nil {
		return s.fail
	}
	s.bound = append(s.bound, c.Name)
	return nil
}

func (s *stubBinder) Provides(ns string) bool { return ns == "lib" }

func TestBinder(t *testing.T) {
	binder := &stubBinder{}
	f := newFixture(t, Options{Binder: binder})
	ctx := context.Background()
	c := f.context(t, "game")

	if len(binder.bound) != 1 || binder.bound[0] != "game" {
		t.Fatalf("binder not called: %v", binder.bound)
	}
	// Imports from a host namespace need no module.
	mod, err := f.Load(ctx, c.ID, Memory("ai", image.Dependent("ai", "lib")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(mod.Imports) != 0 {
		t.Errorf("host namespace counted as reference: %v", mod.Imports)
	}

	binder.fail = serrors.Unsupported(serrors.PhaseContext, "no")
	if _, err := f.CreateContext(ctx, "other"); !errors.Is(err, serrors.ErrUnsupported) {
		t.Errorf("expected binder error, got %v", err)
	}
	if _, ok := f.ContextByName("other"); ok {
		t.Error("failed context should not be active")
	}
}
