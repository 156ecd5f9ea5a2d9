package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/config"
	"github.com/wippyai/scripthost/host"
	"github.com/wippyai/scripthost/modules"
	"github.com/wippyai/scripthost/runtime"
)

// session is one runtime with one context holding the modules named on the
// command line.
type session struct {
	log     *zap.Logger
	rt      *runtime.Runtime
	files   []string
	modules []boundary.ModuleID
	ctxID   boundary.ContextID
	mu      sync.Mutex
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// newLogger builds the CLI logger. Debug level gets the development encoder.
// Colors only when stderr is a terminal.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.ZapLevel() == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(cfg.ZapLevel())
	zc.Sampling = nil
	if isTerminal(os.Stderr) {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zc.Build()
}

// openSession installs the bridge, creates the context and loads files. With
// no files the config's module list is used. A nil logger means newLogger.
func openSession(ctx context.Context, cfg *config.Config, contextName string, files []string, logger *zap.Logger) (*session, error) {
	if len(files) == 0 {
		files = cfg.Modules
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no modules given and none configured")
	}
	if contextName == "" {
		contextName = cfg.Context
	}

	var err error
	if logger == nil {
		logger, err = newLogger(cfg)
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	bridge := host.New()
	if err := bridge.Install(host.ForwardTo(logger)); err != nil {
		return nil, err
	}
	bridge.SetFilter(cfg.FilterMask())
	bridge.SetLogLevel(cfg.ZapLevel())

	s := &session{
		log:   logger,
		rt:    runtime.New(bridge, cfg.RuntimeOptions()...),
		files: files,
	}
	s.ctxID, err = s.rt.CreateContext(ctx, contextName)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	for _, f := range files {
		id, err := s.rt.LoadFile(ctx, s.ctxID, f)
		if err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
		s.modules = append(s.modules, id)
	}
	return s, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.rt.Close(ctx); err != nil {
		s.log.Warn("close runtime", zap.Error(err))
	}
	_ = s.log.Sync()
}

// contextID returns the current context id. A reload replaces it.
func (s *session) contextID() boundary.ContextID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctxID
}

func (s *session) setContextID(id boundary.ContextID) {
	s.mu.Lock()
	s.ctxID = id
	s.mu.Unlock()
}

// loaded returns the modules of the session context in load order.
func (s *session) loaded() ([]*modules.Module, error) {
	return s.rt.Modules(s.contextID())
}

// find locates the module exporting function. "module.function" picks the
// module explicitly, otherwise the first module exporting it wins.
func (s *session) find(function string) (*modules.Module, string, error) {
	mods, err := s.loaded()
	if err != nil {
		return nil, "", err
	}
	if mod, fn, ok := strings.Cut(function, "."); ok {
		for _, m := range mods {
			if m.Name == mod {
				return m, fn, nil
			}
		}
		return nil, "", fmt.Errorf("module %q is not loaded", mod)
	}
	for _, m := range mods {
		if _, ok := m.Compiled.ExportedFunctions()[function]; ok {
			return m, function, nil
		}
	}
	return nil, "", fmt.Errorf("no loaded module exports %q", function)
}

// call creates an object for m, calls function with raw string arguments
// parsed per its signature and releases the object.
func (s *session) call(ctx context.Context, m *modules.Module, function string, raw []string) ([]any, error) {
	fi, ok := lookupExport(m, function)
	if !ok {
		return nil, fmt.Errorf("%s does not export %q", m.Name, function)
	}
	args, err := fi.parseArgs(raw)
	if err != nil {
		return nil, err
	}

	h, err := s.rt.NewObject(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _, _ = s.rt.Release(h) }()

	return s.rt.Call(ctx, h, function, args...)
}
