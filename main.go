package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/agents/data"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/agents/router"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/agents/support"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	intentx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/intent"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/llm"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/prompt"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/protocol"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/records"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
	toolx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/tool"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/demo"
	configx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/config"
	logx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/logger"
	metricsx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/metrics"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/retry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type AppConfig struct {
	ListenAddr string `split_words:"true" default:":8080"`
}

func main() {
	var (
		envFile  = flag.String("env", "", "path to an env file (default .env when present)")
		scenario = flag.String("scenario", "", "embedded scenario to run, or \"all\"")
		query    = flag.String("query", "", "free text query to run")
		list     = flag.Bool("list", false, "list the scenarios and tool operations, then exit")
		serve    = flag.String("serve", "", "serve the tool endpoint and /metrics on this address, or \"config\" for APP_LISTEN_ADDR")
	)
	flag.Parse()

	if err := run(*envFile, *scenario, *query, *list, *serve); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(envFile, scenario, query string, list bool, serve string) error {
	opts := []configx.Option{configx.WithEnvFile(envFile)}

	logCfg, err := configx.New[logx.Config]("LOG", opts...)
	if err != nil {
		return fmt.Errorf("load log config: %w", err)
	}
	logx.Init(*logCfg)

	if list {
		return printCatalog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recordsCfg, err := configx.New[records.Config]("RECORDS", opts...)
	if err != nil {
		return fmt.Errorf("load records config: %w", err)
	}
	store, err := records.Open(ctx, *recordsCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if seeder, ok := store.(records.Seeder); ok {
		if err := demo.Seed(ctx, seeder); err != nil {
			return fmt.Errorf("seed fixtures: %w", err)
		}
	}

	metrics := metricsx.NewRecorder(nil)
	server := protocol.NewServer(toolx.NewExecutor(store), protocol.WithServerLogger(logx.Component("tool_server")))

	if serve != "" {
		appCfg, err := configx.New[AppConfig]("APP", opts...)
		if err != nil {
			return fmt.Errorf("load app config: %w", err)
		}
		addr := serve
		if addr == "config" {
			addr = appCfg.ListenAddr
		}
		return serveHTTP(ctx, addr, server)
	}

	r, err := buildRouter(ctx, opts, server, metrics)
	if err != nil {
		return err
	}

	var queries []demo.Scenario
	switch {
	case strings.TrimSpace(query) != "":
		queries = []demo.Scenario{{Name: "query", Query: query}}
	default:
		if scenario == "" {
			scenario = "all"
		}
		queries, err = demo.Select(scenario)
		if err != nil {
			return err
		}
	}

	for _, s := range queries {
		resp, err := r.Handle(ctx, s.Query)
		printResponse(s, resp, err)
	}
	return nil
}

func buildRouter(ctx context.Context, opts []configx.Option, server *protocol.Server, metrics *metricsx.Recorder) (*router.Router, error) {
	retryCfg, err := configx.New[retry.Config]("RETRY", opts...)
	if err != nil {
		return nil, fmt.Errorf("load retry config: %w", err)
	}
	routerCfg, err := configx.New[router.Config]("ROUTER", opts...)
	if err != nil {
		return nil, fmt.Errorf("load router config: %w", err)
	}

	dataAgent, err := data.New(
		protocol.NewClient("data_agent", protocol.NewLoopback(server)),
		data.WithRetryConfig(*retryCfg),
		data.WithMetrics(metrics),
		data.WithLogger(logx.Component("data_agent")),
	)
	if err != nil {
		return nil, err
	}
	supportAgent, err := support.New(dataAgent, support.WithLogger(logx.Component("support_agent")))
	if err != nil {
		return nil, err
	}

	routerOpts := []router.Option{
		router.WithLogger(logx.Component("router")),
		router.WithMetrics(metrics),
	}

	classifier, err := buildClassifier(ctx, opts)
	if err != nil {
		return nil, err
	}
	if classifier != nil {
		routerOpts = append(routerOpts, router.WithClassifier(classifier))
	}

	traceCfg, err := configx.New[statex.UpstashRedisConfig]("TRACE", opts...)
	if err != nil {
		return nil, fmt.Errorf("load trace config: %w", err)
	}
	if traceCfg.Enabled() {
		traces, err := statex.NewUpstashRedisStore(*traceCfg)
		if err != nil {
			return nil, err
		}
		routerOpts = append(routerOpts, router.WithTraceStore(traces))
	}

	return router.New(dataAgent, supportAgent, *routerCfg, routerOpts...)
}

// buildClassifier returns nil when the fallback model is disabled.
func buildClassifier(ctx context.Context, opts []configx.Option) (contractx.IntentClassifier, error) {
	llmCfg, err := configx.New[llm.Config]("LLM", opts...)
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	if !llmCfg.Enabled {
		return nil, nil
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}

	modelCfg := llmCfg.Classifier()
	chatModel, err := modelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build classifier model: %w", err)
	}
	classifier, err := intentx.NewLLMClassifier(ctx, chatModel, prompt.LoadPromptSet().Classifier)
	if err != nil {
		return nil, err
	}
	return classifier, nil
}

func serveHTTP(ctx context.Context, addr string, server *protocol.Server) error {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Mount("/tools", protocol.NewHandler(server))
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving tool endpoint at /tools/rpc")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func printCatalog() error {
	scenarios, err := demo.Scenarios()
	if err != nil {
		return err
	}
	fmt.Println("Scenarios:")
	for _, s := range scenarios {
		fmt.Printf("  %-26s %s\n", s.Name, s.Query)
	}
	fmt.Println("\nTool operations:")
	for _, info := range toolx.ToolInfos() {
		fmt.Printf("  %-22s %s\n", info.Name, info.Desc)
	}
	return nil
}

func printResponse(s demo.Scenario, resp contractx.ComposedResponse, err error) {
	fmt.Println("==============================")
	fmt.Printf("Scenario: %s\nQuery: %s\n", s.Name, s.Query)
	fmt.Println("==============================")

	fmt.Println("\n--- Message trace ---")
	for _, m := range resp.Trace {
		fmt.Printf("%s -> %s [%s/%s] corr=%s %v\n", m.Sender, m.Receiver, m.Kind, m.Intent, shortID(m.CorrelationID), m.Payload)
	}
	if len(resp.Negotiation) > 0 {
		fmt.Printf("\n--- Negotiation (%d messages) ---\n", len(resp.Negotiation))
		for _, m := range resp.Negotiation {
			fmt.Printf("%s -> %s [%s] %v\n", m.Sender, m.Receiver, m.Kind, m.Payload)
		}
	}

	fmt.Printf("\n--- Answer (%s", resp.Status)
	if resp.Escalated {
		fmt.Print(", escalated")
	}
	fmt.Println(") ---")
	fmt.Println(resp.Text)
	if err != nil {
		fmt.Printf("\nerror: %v\n", err)
	}
	fmt.Println()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
