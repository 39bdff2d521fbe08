package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/yaya56vv/cortex/internal/cognitive"
	"github.com/yaya56vv/cortex/internal/config"
	"github.com/yaya56vv/cortex/internal/contextbuilder"
	"github.com/yaya56vv/cortex/internal/executor"
	"github.com/yaya56vv/cortex/internal/intent"
	"github.com/yaya56vv/cortex/internal/llm"
	"github.com/yaya56vv/cortex/internal/observability"
	"github.com/yaya56vv/cortex/internal/planner"
	"github.com/yaya56vv/cortex/internal/rag"
	"github.com/yaya56vv/cortex/internal/rag/chunker"
	"github.com/yaya56vv/cortex/internal/rag/embeddings"
	"github.com/yaya56vv/cortex/internal/rag/embeddings/ollama"
	"github.com/yaya56vv/cortex/internal/rag/embeddings/openai"
	"github.com/yaya56vv/cortex/internal/rag/store"
	"github.com/yaya56vv/cortex/internal/sessions"
	"github.com/yaya56vv/cortex/internal/storage"
	"github.com/yaya56vv/cortex/internal/timeline"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// Version is the build version, stamped by the linker
// (-ldflags "-X github.com/yaya56vv/cortex/internal/kernel.Version=...").
var Version = "dev"

// System is the fully wired process: the kernel plus the shared
// infrastructure the gateway and CLI reach into directly.
type System struct {
	Config   *config.Config
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
	DB       *storage.DB
	RAG      *rag.Service
	Sessions sessions.Store
	Timeline *timeline.Log
	Registry *toolclient.Registry
	Models   *llm.Registry
	Kernel   *Kernel

	// Cognitive and Scheduler are nil when cognitive.enabled is false.
	Cognitive *cognitive.Engine
	Scheduler *cognitive.Scheduler

	// Watcher is nil when rag.watch.enabled is false.
	Watcher *rag.Watcher

	tracerShutdown func(context.Context) error
}

// Build wires every component from configuration. The returned System owns
// the database handle; call Close on shutdown.
func Build(cfg *config.Config) (*System, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: os.Stderr,
	})

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	var tracer *observability.Tracer
	tracerShutdown := func(context.Context) error { return nil }
	if cfg.Observability.Tracing.Enabled {
		tracer, tracerShutdown = observability.NewTracer(observability.TraceConfig{
			ServiceName:    cfg.Observability.Tracing.ServiceName,
			ServiceVersion: Version,
			Endpoint:       cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SamplingRate,
			EnableInsecure: cfg.Observability.Tracing.Insecure,
		})
	}

	db, err := storage.Open(storage.Config{
		Driver:          cfg.Storage.Driver,
		Path:            cfg.Storage.Path,
		DSN:             cfg.Storage.DSN,
		MaxConnections:  cfg.Storage.MaxConnections,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sys, err := build(cfg, db, logger, metrics, tracer)
	if err != nil {
		db.Close()
		tracerShutdown(context.Background())
		return nil, err
	}
	sys.tracerShutdown = tracerShutdown
	return sys, nil
}

func build(cfg *config.Config, db *storage.DB, logger *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer) (*System, error) {
	slogger := logger.Slog()

	embedder, err := buildEmbedder(cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	docStore, err := store.New(store.Config{DB: db, Dimension: cfg.Embeddings.Dimension})
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	ragSvc, err := rag.New(rag.Config{
		Store:    docStore,
		Embedder: embedder,
		Chunker: chunker.Config{
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
		},
		RetentionOverrides: cfg.RAG.RetentionOverrides,
		Logger:             slogger,
		Metrics:            metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build rag service: %w", err)
	}

	sessionStore, err := sessions.NewFileStore(sessions.FileStoreConfig{
		Dir:      cfg.Sessions.Dir,
		Embedder: embedder,
		Logger:   slogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	tl, err := timeline.New(timeline.Config{
		DB:         db,
		SessionCap: cfg.Timeline.MaxEventsPerSession,
		Logger:     slogger,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("open timeline: %w", err)
	}

	modelReg, err := llm.New(llmConfig(cfg, slogger, metrics))
	if err != nil {
		return nil, fmt.Errorf("build model registry: %w", err)
	}

	registry, err := buildToolRegistry(cfg, ragSvc, sessionStore, modelReg)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	builder, err := contextbuilder.New(contextbuilder.Config{
		Memory:         sessionStore,
		Retrieval:      ragSvc,
		Events:         tl,
		Registry:       registry,
		SoftTimeout:    cfg.Context.SoftTimeout,
		HardTimeout:    cfg.Context.HardTimeout,
		MaxSourceBytes: cfg.Context.MaxSourceBytes,
		HistoryLimit:   cfg.Context.HistoryLimit,
		Logger:         slogger,
		Metrics:        metrics,
		Tracer:         tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("build context builder: %w", err)
	}

	plnr, err := planner.New(planner.Config{
		Models:  modelReg,
		Logger:  slogger,
		Metrics: metrics,
		Tracer:  tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("build planner: %w", err)
	}

	exec, err := executor.New(executor.Config{
		Registry: registry,
		Timeline: tl,
		Logger:   slogger,
		Metrics:  metrics,
		Tracer:   tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("build executor: %w", err)
	}

	k, err := New(Config{
		Router:   intent.NewRouter(slogger),
		Builder:  builder,
		Planner:  plnr,
		Executor: exec,
		Memory:   sessionStore,
		Logger:   slogger,
		Metrics:  metrics,
		Tracer:   tracer,
	})
	if err != nil {
		return nil, err
	}

	sys := &System{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
		DB:       db,
		RAG:      ragSvc,
		Sessions: sessionStore,
		Timeline: tl,
		Registry: registry,
		Models:   modelReg,
		Kernel:   k,
	}

	if cfg.Cognitive.Enabled {
		engine, err := cognitive.New(cognitive.Config{
			Events:              tl,
			Memory:              sessionStore,
			Documents:           ragSvc,
			Models:              modelReg,
			SummarizeThreshold:  cfg.Cognitive.SummarizeThreshold,
			VisionSyncThreshold: cfg.Cognitive.VisionSyncThreshold,
			ScratchpadThreshold: cfg.Cognitive.ScratchpadThreshold,
			Logger:              slogger,
			Metrics:             metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("build cognitive engine: %w", err)
		}
		scheduler, err := cognitive.NewScheduler(engine, cfg.Cognitive.Schedule, slogger)
		if err != nil {
			return nil, fmt.Errorf("build cognitive scheduler: %w", err)
		}
		sys.Cognitive = engine
		sys.Scheduler = scheduler
	}

	if cfg.RAG.Watch.Enabled {
		watcher, err := rag.NewWatcher(rag.WatcherConfig{
			Service:  ragSvc,
			Dir:      cfg.RAG.Watch.Dir,
			Dataset:  cfg.RAG.Watch.Dataset,
			Debounce: cfg.RAG.Watch.Debounce,
			Logger:   slogger,
		})
		if err != nil {
			return nil, fmt.Errorf("build inbox watcher: %w", err)
		}
		sys.Watcher = watcher
	}

	return sys, nil
}

// Start launches the background loops (cognitive scheduler, inbox watcher).
// They stop when ctx is cancelled.
func (s *System) Start(ctx context.Context) error {
	if s.Scheduler != nil {
		go s.Scheduler.Run(ctx)
	}
	if s.Watcher != nil {
		if err := s.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("start inbox watcher: %w", err)
		}
	}
	return nil
}

// Close releases the database and flushes pending trace spans.
func (s *System) Close(ctx context.Context) error {
	var firstErr error
	if s.Watcher != nil {
		if err := s.Watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.tracerShutdown != nil {
		if err := s.tracerShutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildEmbedder(cfg config.EmbeddingsConfig) (embeddings.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})
	default:
		return ollama.New(ollama.Config{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
	}
}

func llmConfig(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) llm.Config {
	roles := make(map[models.LLMRole]llm.RoleBinding, len(cfg.LLM.Roles))
	for role, rc := range cfg.LLM.Roles {
		roles[models.LLMRole(role)] = llm.RoleBinding{Provider: rc.Provider, Model: rc.Model}
	}
	providers := make(map[string]llm.ProviderConfig, len(cfg.LLM.Providers))
	for name, pc := range cfg.LLM.Providers {
		providers[name] = llm.ProviderConfig{
			Kind:            pc.Kind,
			APIKey:          pc.APIKey,
			BaseURL:         pc.BaseURL,
			Model:           pc.Model,
			Region:          pc.Region,
			AccessKeyID:     pc.AccessKeyID,
			SecretAccessKey: pc.SecretAccessKey,
			SessionToken:    pc.SessionToken,
		}
	}
	return llm.Config{
		Roles:     roles,
		Providers: providers,
		Timeout:   cfg.LLM.Timeout,
		Logger:    logger,
		Metrics:   metrics,
	}
}

// buildToolRegistry assembles the fleet: one HTTP client per configured
// external service, plus the in-process rag, memory and llm tools. An
// in-process tool wins over an external service declared under the same name.
func buildToolRegistry(cfg *config.Config, ragSvc *rag.Service, sessionStore sessions.Store, modelReg *llm.Registry) (*toolclient.Registry, error) {
	var clients []toolclient.Client
	for name, svc := range cfg.Tools.Services {
		timeout := cfg.Tools.Timeout
		if name == "vision" {
			timeout = cfg.Tools.VisionTimeout
		}
		client, err := toolclient.NewHTTPClient(toolclient.HTTPConfig{
			Tool:    name,
			BaseURL: svc.URL,
			Timeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		clients = append(clients, client)
	}
	clients = append(clients,
		rag.NewClient(ragSvc),
		sessions.NewClient(sessionStore),
		llm.NewToolAdapter(modelReg),
	)
	return toolclient.NewRegistry(clients...), nil
}
