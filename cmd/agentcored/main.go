// Command agentcored is the runtime's entrypoint: it wires the durable
// store, event bus, tool registry, policy evaluator, snapshot manager, and
// execution engine together, then serves liveness/readiness over HTTP and
// exposes session lifecycle via cobra subcommands. Grounded on the
// teacher's cmd/opencode (spf13/cobra root + serve command, the same
// config.Load -> storage.Open -> provider/tool-registry -> server.New
// wiring order), adapted to this tree's own collaborators.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentrt/core/internal/actor"
	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/config"
	"github.com/agentrt/core/internal/engine"
	"github.com/agentrt/core/internal/eventbus"
	"github.com/agentrt/core/internal/health"
	"github.com/agentrt/core/internal/middleware"
	"github.com/agentrt/core/internal/obslog"
	"github.com/agentrt/core/internal/ratelimit"
	"github.com/agentrt/core/internal/sessionstore"
	"github.com/agentrt/core/internal/snapshot"
	"github.com/agentrt/core/internal/storage"
	"github.com/agentrt/core/internal/tool"
	"github.com/agentrt/core/internal/toolpolicy"
)

var workDir string

func main() {
	root := &cobra.Command{
		Use:   "agentcored",
		Short: "agentrt session execution daemon",
	}
	root.PersistentFlags().StringVarP(&workDir, "directory", "C", "", "working directory (defaults to cwd)")
	root.AddCommand(newServeCmd(), newSessionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}

// deps is every collaborator the engine/actor layer needs, built once per
// process invocation and shared across sessions.
type deps struct {
	cfg     *config.Config
	log     *obslog.Logger
	store   *storage.Storage
	bus     *eventbus.Bus
	sp      *sessionstore.SessionProvider
	reg     *tool.Registry
	policy  *toolpolicy.Evaluator
	snapMgr *snapshot.Manager
	eng     *engine.Engine
}

func buildDeps(dir string) (*deps, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := obslog.New(os.Stderr, level)

	storagePath := cfg.StoragePath
	if storagePath == "" {
		storagePath = paths.StoragePath()
	}
	store, err := storage.Open(storagePath)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New(nil)

	fallback := cfg.LLMParams()
	sp := sessionstore.NewProvider(store, bus, fallback, log)

	reg := tool.NewRegistry()
	registerBuiltinTools(reg, store)

	policy := toolpolicy.NewEvaluator()
	snapMgr := snapshot.NewManager(nil, snapshot.DefaultMutatingConfig(), snapshot.PolicyDiff)

	eng := engine.New(engine.Deps{
		Provider: unconfiguredProvider{},
		Registry: reg,
		Policy:   policy,
		Bus:      bus,
		Retry:    cfg.Retry,
		Limiter:  ratelimit.NewLimiter(2, 4),
		Log:      log,
		MaxSteps: cfg.Limits.MaxSteps,
	})

	return &deps{cfg: cfg, log: log, store: store, bus: bus, sp: sp, reg: reg, policy: policy, snapMgr: snapMgr, eng: eng}, nil
}

func (d *deps) Close() {
	_ = d.bus.Close()
	_ = d.store.Close()
}

// registerBuiltinTools registers every built-in tool this tree ships,
// mirroring the teacher's tool.DefaultRegistry(workDir) construction.
func registerBuiltinTools(reg *tool.Registry, store *storage.Storage) {
	reg.Register(tool.NewReadTool())
	reg.Register(tool.NewWriteTool())
	reg.Register(tool.NewEditTool())
	reg.Register(tool.NewGlobTool())
	reg.Register(tool.NewGrepTool())
	reg.Register(tool.NewListTool())
	reg.Register(tool.NewBashTool())
	reg.Register(tool.NewMdqTool())
	reg.Register(tool.NewQuestionTool())
	reg.Register(tool.NewWebFetchTool())
	reg.Register(tool.NewTodoReadTool(store))
	reg.Register(tool.NewTodoWriteTool(store))
	reg.Register(tool.NewCreateTaskTool(store))
	reg.Register(tool.NewDelegateTool(store))
	reg.Register(tool.NewUseRemoteProviderTool(store))
	reg.Register(tool.NewBatchTool(reg))
}

// unconfiguredProvider is the boundary spec §1 names out of scope: a
// concrete per-vendor LLM wire implementation. It fails clearly rather
// than silently, so a deployment knows to plug in a real engine.Provider
// before serving real traffic.
type unconfiguredProvider struct{}

func (unconfiguredProvider) Complete(ctx context.Context, req engine.CompletionRequest) (engine.CompletionResult, error) {
	return engine.CompletionResult{}, apperr.Wrap(apperr.ProviderError, "no LLM provider configured", fmt.Errorf("wire a concrete engine.Provider before serving prompts"))
}

// sessionManager owns one actor.Actor per open session, keyed by session
// id, mirroring the teacher's session.Service in shape (a map guarded by a
// mutex) but backing each entry with a mailbox goroutine instead of a bare
// struct.
type sessionManager struct {
	d *deps

	mu     sync.Mutex
	actors map[string]*actor.Actor
}

func newSessionManager(d *deps) *sessionManager {
	return &sessionManager{d: d, actors: make(map[string]*actor.Actor)}
}

func (m *sessionManager) Create(ctx context.Context, name string) (*actor.Actor, *sessionstore.SessionContext, error) {
	sc, err := m.d.sp.CreateSession(ctx, storage.CreateSessionOpts{Name: name}, nil)
	if err != nil {
		return nil, nil, err
	}

	pipeline := middleware.NewPipeline(middleware.NewLimits(m.d.cfg.Limits))
	dedup := middleware.NewDedup(middleware.DedupConfig{})

	a := actor.New(actor.Deps{
		Store:    m.d.store,
		Sessions: m.d.sp,
		Registry: m.d.reg,
		Policy:   m.d.policy,
		Bus:      m.d.bus,
		Engine:   m.d.eng,
		Log:      m.d.log,
		Snapshot: m.d.snapMgr,
	}, sc, pipeline, dedup)

	a.SetToolPolicy(m.d.cfg.ToolPolicy.Policy)

	m.mu.Lock()
	m.actors[sc.Session().ID] = a
	m.mu.Unlock()

	return a, sc, nil
}

func (m *sessionManager) Ready(ctx context.Context) error {
	return nil
}

// Shutdown stops every live actor's mailbox.
func (m *sessionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.actors {
		a.Shutdown()
		delete(m.actors, id)
	}
}

func newServeCmd() *cobra.Command {
	var port int
	var hostname string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the health/readiness HTTP surface and hold the process open",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveWorkDir()
			if err != nil {
				return err
			}
			d, err := buildDeps(dir)
			if err != nil {
				return err
			}
			defer d.Close()

			sessions := newSessionManager(d)
			defer sessions.Shutdown()

			healthCfg := health.DefaultConfig()
			healthCfg.Store = d.store
			healthCfg.Bus = d.bus
			healthCfg.Extra = []health.Checker{sessions}
			router := health.NewRouter(healthCfg)

			srv := &http.Server{
				Addr:         fmt.Sprintf("%s:%d", hostname, port),
				Handler:      router,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			d.log.Info().Str("directory", dir).Int("port", port).Msg("agentcored listening")
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					d.log.Error().Err(err).Msg("health server error")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			d.log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8085, "port to listen on")
	cmd.Flags().StringVar(&hostname, "hostname", "127.0.0.1", "hostname to listen on")
	return cmd
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "manage sessions"}
	cmd.AddCommand(newSessionCreateCmd())
	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "create a new session and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveWorkDir()
			if err != nil {
				return err
			}
			d, err := buildDeps(dir)
			if err != nil {
				return err
			}
			defer d.Close()

			sessions := newSessionManager(d)
			defer sessions.Shutdown()

			_, sc, err := sessions.Create(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Println(sc.Session().ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "session name")
	return cmd
}
