// Package mcp exposes linting to agents over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/lintwatch/internal/annotate"
	"github.com/standardbeagle/lintwatch/internal/config"
	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/project"
	"github.com/standardbeagle/lintwatch/internal/runner"
	"github.com/standardbeagle/lintwatch/internal/scan"
	"github.com/standardbeagle/lintwatch/internal/scheduler"
	"github.com/standardbeagle/lintwatch/internal/types"
	"github.com/standardbeagle/lintwatch/internal/version"
	"github.com/standardbeagle/lintwatch/internal/watch"
)

// Server serves the lint tools. It owns one coordinator and one batch scope;
// lint_project replaces the scope, lint_file scans single files alongside it
// and annotations keeps open files annotated in live mode.
type Server struct {
	cfg              *config.Config
	coord            *scan.Coordinator
	gate             *scheduler.Gate
	batch            *scheduler.BatchScheduler
	problems         *scheduler.ProblemList
	live             *scheduler.LiveScheduler
	store            *annotate.Store
	server           *mcp.Server
	diagnosticLogger *DiagnosticLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	scopeRoot    string
	launchErr    *lwerrors.LaunchError
	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	resolver project.Resolver
	logger   *DiagnosticLogger
	watch    bool
}

// WithResolver overrides the project root resolver.
func WithResolver(r project.Resolver) Option {
	return func(o *serverOptions) { o.resolver = r }
}

// WithLogger sets the diagnostic logger; the default discards.
func WithLogger(l *DiagnosticLogger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithWatch keeps the lint_project scope current by watching its root, and
// rescans files opened through annotations when they change on disk.
func WithWatch(enabled bool) Option {
	return func(o *serverOptions) { o.watch = enabled }
}

// NewServer creates an MCP server that lints through r.
func NewServer(cfg *config.Config, r runner.Runner, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mcp: nil config")
	}
	o := serverOptions{logger: NoOpLogger}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = project.Chain{project.NewMarkerResolver(), project.NewStaticResolver(cfg.Project.Root)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:              cfg,
		problems:         scheduler.NewProblemList(),
		diagnosticLogger: o.logger,
		ctx:              ctx,
		cancel:           cancel,
		scopeRoot:        cfg.Project.Root,
	}

	s.coord = scan.NewCoordinator(cfg, r,
		scan.WithResolver(o.resolver),
		scan.WithNotifier(scan.NotifierFunc(s.launchFailed)),
		scan.WithStderr(func(target types.ScanTarget, line string) {
			s.diagnosticLogger.Printf("analyzer stderr (%s): %s", target, line)
		}),
	)
	s.gate = scheduler.NewGate(cfg, o.resolver)
	s.batch = scheduler.NewBatchScheduler(s.coord, s.gate, scheduler.BatchOptions{Watch: o.watch})

	var liveWatcher *watch.FileWatcher
	if o.watch {
		w, err := watch.NewFileWatcher(watch.Options{Debounce: cfg.WatchDebounce(), Ignore: s.gate, Eligible: s.gate})
		if err != nil {
			s.diagnosticLogger.Errorf("open files will not follow disk changes: %v", err)
		} else {
			liveWatcher = w
		}
	}
	s.store = annotate.NewStore()
	s.live = scheduler.NewLiveScheduler(s.coord, s.store, s.gate, liveWatcher)

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "lintwatch",
		Version: version.Current().ServerVersion(),
	}, nil)
	s.registerTools()

	s.diagnosticLogger.Printf("MCP server initialized, project root %s", cfg.Project.Root)
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "lint_file",
		Description: "Run the analyzer on one file and return its problems. Relative paths resolve against the project root.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File to lint (e.g. \"src/app.ts\")",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleLintFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "lint_project",
		Description: "Lint every eligible file under a root, one analyzer run per file, and return the project problem list. Replaces the previous project scope.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"root": {
					Type:        "string",
					Description: "Directory to lint; defaults to the project root",
				},
			},
		},
	}, s.handleLintProject)

	s.server.AddTool(&mcp.Tool{
		Name:        "problems",
		Description: "Return the current problem list without rescanning, optionally for one file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "Only return problems for this file",
				},
			},
		},
	}, s.handleProblems)

	s.server.AddTool(&mcp.Tool{
		Name: "annotations",
		Description: "Open a file in live mode and return its annotations: problems bound to their current text position. " +
			"Open files are rescanned when they change on disk. Pass refresh to rescan now, close to stop tracking.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File to annotate (e.g. \"src/app.ts\")",
				},
				"refresh": {
					Type:        "boolean",
					Description: "Reload and rescan an already open file",
				},
				"close": {
					Type:        "boolean",
					Description: "Stop tracking the file and drop its annotations",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleAnnotations)
}

// launchFailed records the failure for the next lint_project response.
// The coordinator calls it once per failure streak.
func (s *Server) launchFailed(err *lwerrors.LaunchError) {
	s.diagnosticLogger.Errorf("%v (%s)", err, err.Hint())
	s.mu.Lock()
	s.launchErr = err
	s.mu.Unlock()
}

// resolve makes path absolute against the project root.
func (s *Server) resolve(path string) string {
	if path == "" {
		return s.cfg.Project.Root
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.cfg.Project.Root, path)
	}
	return filepath.Clean(path)
}

func (s *Server) displayRoot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scopeRoot
}

// recoverFromPanic turns a handler panic into a tool error.
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.diagnosticLogger.Printf("PANIC RECOVERED in %s: %v", operation, r)
			s.diagnosticLogger.Printf("Stack trace: %s", debug.Stack())
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()
	return handler()
}

// Start serves over stdio until ctx is done or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("Starting MCP server with stdio transport (pid %d)", os.Getpid())
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Shutdown tears down the project scope and waits for every scan.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.diagnosticLogger.Printf("Shutting down MCP server...")
		s.batch.Close()
		s.live.Stop()
		s.cancel()
		s.coord.Shutdown()
		s.diagnosticLogger.Printf("MCP server shutdown complete")
	})
}
