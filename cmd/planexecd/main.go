// Command planexecd wires together the Tool Registry, Planner, Executor,
// Validator, Workflow Engine, State Store, and HTTP/SSE surface into a
// single process, following the teacher's flag-parsing and
// goa.design/clue/log setup in example/cmd/assistant/main.go.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"goa.design/clue/log"

	"github.com/planexec/planexec/chatgen"
	"github.com/planexec/planexec/checkpoint/inmem"
	"github.com/planexec/planexec/config"
	"github.com/planexec/planexec/engine"
	engineinmem "github.com/planexec/planexec/engine/inmem"
	"github.com/planexec/planexec/executor"
	"github.com/planexec/planexec/knowledge"
	"github.com/planexec/planexec/planner"
	repositoryinmem "github.com/planexec/planexec/repository/inmem"
	"github.com/planexec/planexec/stream"
	"github.com/planexec/planexec/telemetry"
	"github.com/planexec/planexec/toolregistry"
	planexechttp "github.com/planexec/planexec/transport/http"
	"github.com/planexec/planexec/validator"
)

func main() {
	var (
		httpAddrF  = flag.String("http-addr", ":8080", "address to bind the HTTP/SSE surface to")
		configF    = flag.String("config", "", "path to a YAML config file overriding defaults")
		dbgF       = flag.Bool("debug", false, "log request/response detail")
		anthropicKeyF = flag.String("anthropic-api-key", os.Getenv("ANTHROPIC_API_KEY"), "Anthropic API key for the chat generator")
		modelF     = flag.String("model", "claude-sonnet-4-5", "default chat generator model identifier")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg, err := config.Load(*configF)
	if err != nil {
		log.Errorf(ctx, err, "failed to load config")
		os.Exit(1)
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewOTELMetrics()
	tracer := telemetry.NewOTELTracer()

	registry := toolregistry.New(toolregistry.WithLogger(logger), toolregistry.WithMetrics(metrics))
	if err := toolregistry.RegisterBuiltins(registry); err != nil {
		log.Errorf(ctx, err, "failed to register builtin tools")
		os.Exit(1)
	}

	chatGen, err := newChatGenerator(*anthropicKeyF, *modelF)
	if err != nil {
		log.Errorf(ctx, err, "failed to construct chat generator")
		os.Exit(1)
	}

	knowledgeSearcher := knowledge.NewInMemory()

	nodes := engine.Nodes{
		Planner: planner.New(chatGen, knowledgeSearcher, registry,
			planner.WithLogger(logger), planner.WithMetrics(metrics), planner.WithTracer(tracer)),
		Executor: executor.New(registry,
			executor.WithLogger(logger), executor.WithMetrics(metrics), executor.WithTracer(tracer),
			executor.WithMaxRetry(cfg.MaxRetryCount), executor.WithSynthesizer(executor.NewLLMSynthesize(chatGen))),
		Validator: validator.New(chatGen,
			validator.WithLogger(logger), validator.WithMetrics(metrics), validator.WithTracer(tracer)),
	}

	store := inmem.New()
	disp := stream.New(64)
	eng := engineinmem.New(nodes, store, disp, engineinmem.WithLogger(logger), engineinmem.WithTracer(tracer))

	repo := repositoryinmem.New()
	srv := planexechttp.New(eng, disp, repo, repo, logger)

	httpServer := &http.Server{Addr: *httpAddrF, Handler: srv}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf(ctx, "listening addr=%s", *httpAddrF)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf(ctx, err, "http server failed")
		}
	}()

	<-ctx.Done()
	log.Print(ctx, log.KV{K: "msg", V: "shutting down"})
	_ = httpServer.Shutdown(context.Background())
}

// newChatGenerator constructs the default Anthropic-backed chat generator
// used in production; tests and local demos can substitute chatgen.Static.
func newChatGenerator(apiKey, model string) (chatgen.Generator, error) {
	return anthropicGenerator(apiKey, model)
}
