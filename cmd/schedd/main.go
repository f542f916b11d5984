package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flitsinc/schedd/internal/ai"
	"github.com/flitsinc/schedd/internal/api"
	"github.com/flitsinc/schedd/internal/calendar"
	"github.com/flitsinc/schedd/internal/config"
	"github.com/flitsinc/schedd/internal/dispatch"
	"github.com/flitsinc/schedd/internal/eventbus"
	"github.com/flitsinc/schedd/internal/prefs"
	"github.com/flitsinc/schedd/internal/runstore"
	"github.com/flitsinc/schedd/internal/session"
	"github.com/flitsinc/schedd/internal/state"
	"github.com/flitsinc/schedd/internal/web"
	"github.com/flitsinc/schedd/internal/workflow"
)

func main() {
	cfg := config.Load()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	db, err := state.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	bus := eventbus.NewBus(db)
	registry := session.NewRegistry(db)
	runs := runstore.NewStore(db)
	meetings := calendar.NewRecorder(db)
	preferences := prefs.NewStore(db)

	var llmClient *ai.Client
	if cfg.LLMModel != "" && cfg.LLMAPIKey != "" {
		llmClient, err = ai.NewClient(ai.Config{
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			APIKey:  cfg.LLMAPIKey,
		})
		if err != nil {
			log.Printf("LLM disabled: %v", err)
		}
	}
	if llmClient == nil {
		log.Printf("LLM not configured, using deterministic heuristics")
	}

	notifier := &dispatch.BusNotifier{Bus: bus}
	engine := &workflow.Engine{
		Registry:    registry,
		Runs:        runs,
		Extractor:   &ai.Extractor{Client: llmClient},
		Proposer:    &ai.Proposer{Client: llmClient, Prefs: preferences},
		Interpreter: &ai.Interpreter{Client: llmClient},
		Scheduler:   meetings,
		Notifier:    notifier,
		Bus:         bus,
		Timezone:    cfg.Timezone,
	}
	dispatcher := &dispatch.Dispatcher{
		Engine:    engine,
		Registry:  registry,
		Notifier:  notifier,
		Bus:       bus,
		BotUserID: cfg.BotUserID,
		Timezone:  cfg.Timezone,
	}

	listener, err := workflow.ListenerFromEnv()
	if err != nil {
		log.Fatalf("listener: %v", err)
	}
	if listener == nil {
		listener, err = net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
	}

	var httpServer *http.Server
	serverCtx, serverCancel := context.WithCancel(context.Background())

	restarter := &workflow.Restarter{
		Listener: listener,
		Args:     os.Args,
		Env:      os.Environ(),
	}
	restartFn := func() error {
		if err := restarter.Restart(); err != nil {
			return err
		}
		go func() {
			time.Sleep(750 * time.Millisecond)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(ctx)
			dispatcher.Wait()
			os.Exit(0)
		}()
		return nil
	}

	apiServer := &api.Server{
		Dispatcher:   dispatcher,
		Registry:     registry,
		Runs:         runs,
		Meetings:     meetings,
		Prefs:        preferences,
		Bus:          bus,
		Restart:      restartFn,
		RestartToken: cfg.RestartToken,
		StartedAt:    time.Now().UTC(),
		Info: api.DiagnosticsInfo{
			HTTPAddr:   cfg.HTTPAddr,
			DataDir:    cfg.DataDir,
			DBPath:     cfg.DBPath,
			WebDir:     cfg.WebDir,
			Timezone:   cfg.Timezone,
			LLMBaseURL: cfg.LLMBaseURL,
			LLMModel:   cfg.LLMModel,
		},
	}
	webServer := &web.Server{Dir: cfg.WebDir}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())
	mux.Handle("/", webServer.Handler())

	httpServer = &http.Server{
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return serverCtx
		},
	}

	go func() {
		log.Printf("schedd listening on %s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	serverCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	// Let in-flight runs reach their suspend point; their state survives in
	// the run store either way.
	dispatcher.Wait()
	_ = httpServer.Close()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
