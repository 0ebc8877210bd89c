// Hearthd is a personal home-automation assistant daemon.
//
// It connects a Telegram chat to Home Assistant through an LLM
// tool-calling agent: conversational control and inspection of the
// home, a scheduled morning briefing, an insight poll that notices
// significant state changes on its own, and a webhook ingress for
// HA automations that want the agent's judgement.
//
// Usage:
//
//	hearthd serve              Run the daemon (default)
//	hearthd check              Load config and verify connectivity
//	hearthd version            Print version and build information
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hearthd/hearth/internal/agent"
	"github.com/hearthd/hearth/internal/alerts"
	"github.com/hearthd/hearth/internal/briefing"
	"github.com/hearthd/hearth/internal/buildinfo"
	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/haconfig"
	"github.com/hearthd/hearth/internal/homeassistant"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/persona"
	"github.com/hearthd/hearth/internal/scheduler"
	"github.com/hearthd/hearth/internal/telegram"
	"github.com/hearthd/hearth/internal/tools"
	"github.com/hearthd/hearth/internal/triage"
	"github.com/hearthd/hearth/internal/webhook"
)

// main constructs the OS-level environment and delegates to run, so the
// full lifecycle can be driven from tests without os.Exit in the way.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	command := "serve"

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-"):
			command = args[i]
		default:
			return fmt.Errorf("unknown flag %q", args[i])
		}
	}

	if command == "version" {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}

	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	logger.Info("starting", "build", buildinfo.String(), "config", path)

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "check":
		return check(ctx, cfg, logger, stdout)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprint(w, `hearthd - personal home-automation assistant

Usage:
  hearthd [-config path] serve      Run the daemon (default)
  hearthd [-config path] check      Load config and verify connectivity
  hearthd version                   Print version and build information
`)
	return nil
}

// buildRoutes maps each purpose to its configured model chain.
func buildRoutes(m config.ModelsConfig) map[llm.Purpose]llm.Route {
	routes := map[llm.Purpose]llm.Route{
		llm.PurposeConversation: {Model: m.Conversation},
		llm.PurposeTriage:       {Model: m.Triage},
		llm.PurposeBriefing:     {Model: m.Briefing},
		llm.PurposeDelegate:     {Model: m.Delegate},
		llm.PurposeProactive:    {Model: m.Proactive},
	}
	for name, fallbacks := range m.Fallbacks {
		purpose := llm.Purpose(name)
		if route, ok := routes[purpose]; ok {
			route.Fallbacks = fallbacks
			routes[purpose] = route
		}
	}
	return routes
}

// check verifies the configuration can reach its dependencies.
func check(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ha := homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
	if err := ha.Ping(ctx); err != nil {
		return fmt.Errorf("home assistant: %w", err)
	}
	fmt.Fprintln(stdout, "home assistant: ok")

	anthropic := llm.NewAnthropicClient(cfg.Providers.AnthropicAPIKey, logger)
	if err := anthropic.Ping(ctx); err != nil {
		return fmt.Errorf("anthropic: %w", err)
	}
	fmt.Fprintln(stdout, "anthropic: ok")

	if cfg.HomeAssistant.RecorderDB != "" {
		recorder, err := homeassistant.OpenRecorder(cfg.HomeAssistant.RecorderDB, logger)
		if err != nil {
			return fmt.Errorf("recorder db: %w", err)
		}
		recorder.Close()
		fmt.Fprintln(stdout, "recorder db: ok")
	}

	return nil
}

// serve wires every component and runs until interrupted.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()

	store, err := persona.NewStore(filepath.Join(cfg.DataDir, "persona"), cfg.Agent.BotName, cfg.Agent.Timezone, logger)
	if err != nil {
		return fmt.Errorf("persona store: %w", err)
	}

	ha := homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)

	var recorder *homeassistant.Recorder
	if cfg.HomeAssistant.RecorderDB != "" {
		recorder, err = homeassistant.OpenRecorder(cfg.HomeAssistant.RecorderDB, logger)
		if err != nil {
			// Statistics tools degrade; everything else still works.
			logger.Warn("recorder db unavailable, statistics tools disabled", "error", err)
		} else {
			defer recorder.Close()
		}
	}

	alertStore := alerts.NewStore(filepath.Join(cfg.DataDir, "user_alerts.json"), logger)
	evaluator := alerts.NewEvaluator(alertStore, func(ctx context.Context, entityID string) (string, error) {
		state, err := ha.GetState(ctx, entityID)
		if err != nil {
			return "", err
		}
		return state.State, nil
	}, logger)

	gateway := llm.NewGateway(
		llm.NewAnthropicClient(cfg.Providers.AnthropicAPIKey, logger),
		llm.NewOpenRouterClient(cfg.Providers.OpenRouterAPIKey, logger),
		buildRoutes(cfg.Models),
		logger,
	)

	registry := tools.NewRegistry(tools.Deps{
		HA:       ha,
		Recorder: recorder,
		Persona:  store,
		HAConfig: haconfig.NewEditor(cfg.HomeAssistant.ConfigDir, cfg.HomeAssistant.ValidateCommand, logger),
		Alerts:   alertStore,
	}, logger)

	tg := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
	send := tg.SendMessage

	assistant := agent.New(gateway, registry, store, send, agent.Config{
		BotName:         cfg.Agent.BotName,
		MaxHistory:      cfg.Agent.MaxHistory,
		MaxRounds:       cfg.Agent.MaxRounds,
		DelegateRounds:  cfg.Agent.DelegateRounds,
		SilenceSentinel: cfg.Agent.SilenceSentinel,
		AskUserTimeout:  cfg.Agent.AskUserTimeout,
	}, loc, logger)

	chatID := cfg.Telegram.ChatID

	dispatcher := triage.NewDispatcher(
		triage.NewClassifier(gateway, cfg.Agent.BotName, logger),
		func(ctx context.Context, entityID string) string {
			if entityID == "" {
				return ""
			}
			state, err := ha.GetState(ctx, entityID)
			if err != nil {
				return ""
			}
			return homeassistant.Summarize(*state)
		},
		func(ctx context.Context, text string) string {
			return assistant.Reply(ctx, chatID, text)
		},
		send,
		logger,
	)

	insight := scheduler.NewInsightCycle(
		ha.GetStates,
		evaluator,
		triage.NewDiffer(cfg.Triage.WatchedDomains, cfg.Triage.AbsThreshold, cfg.Triage.PctThreshold, logger),
		func(ctx context.Context, contextText string, useHistory bool) {
			assistant.RunProactive(ctx, chatID, contextText, useHistory)
		},
		send,
		logger,
	)

	generator := briefing.NewGenerator(gateway, store, cfg.Agent.BotName, loc, logger)
	briefingJob := func(ctx context.Context) {
		states, err := ha.GetStates(ctx)
		if err != nil {
			logger.Error("briefing state snapshot failed", "error", err)
			states = nil
		}
		text := generator.Generate(ctx, homeassistant.SummarizeAll(states))
		if err := send(ctx, text); err != nil {
			logger.Error("briefing delivery failed", "error", err)
		}
	}

	sched := scheduler.New(cfg.Schedule.BriefingTime, cfg.Schedule.PollInterval, loc, briefingJob, insight.Run, logger)

	hook := webhook.NewServer(cfg.Webhook.Address, cfg.Webhook.Port, dispatcher, logger)

	errCh := make(chan error, 4)

	go func() {
		if err := hook.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("webhook server: %w", err)
		}
	}()

	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	go func() {
		err := tg.Run(ctx, func(ctx context.Context, chatID int64, text string) {
			reply, deliver := assistant.HandleInbound(ctx, chatID, text)
			if deliver {
				if err := send(ctx, reply); err != nil {
					logger.Error("reply delivery failed", "error", err)
				}
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("telegram: %w", err)
		}
	}()

	if cfg.HomeAssistant.SubscribeEvents {
		events := homeassistant.NewEventClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
		go events.Run(ctx)
		go func() {
			for change := range events.Events() {
				if change.NewState == nil {
					continue
				}
				oldVal := "unknown"
				if change.OldState != nil {
					oldVal = change.OldState.State
				}
				dispatcher.Dispatch(ctx, triage.Event{
					Title:    "State change",
					Message:  fmt.Sprintf("%s: %s -> %s", change.EntityID, oldVal, change.NewState.State),
					EntityID: change.EntityID,
				})
			}
		}()
	}

	logger.Info("hearthd running",
		"chat_id", chatID,
		"briefing_time", cfg.Schedule.BriefingTime,
		"poll_interval", cfg.Schedule.PollInterval,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hook.Shutdown(shutdownCtx); err != nil {
		logger.Error("webhook shutdown failed", "error", err)
	}

	logger.Info("hearthd stopped")
	return runErr
}
