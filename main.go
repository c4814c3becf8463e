package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
	"github.com/wayfarerlabs/wayfarer/agent/gateway"
	"github.com/wayfarerlabs/wayfarer/agent/memory"
	"github.com/wayfarerlabs/wayfarer/agent/orchestrator"
	"github.com/wayfarerlabs/wayfarer/agent/retrieval"
	"github.com/wayfarerlabs/wayfarer/agent/tool"
	configx "github.com/wayfarerlabs/wayfarer/pkg/config"
	_ "github.com/wayfarerlabs/wayfarer/pkg/logger/autoload"
	notifyx "github.com/wayfarerlabs/wayfarer/pkg/notify"
)

type AppConfig struct {
	UserID        string `envconfig:"USER_ID" split_words:"true" default:"local"`
	SessionID     string `envconfig:"SESSION_ID" split_words:"true" default:"cli"`
	MemoryBackend string `envconfig:"MEMORY_BACKEND" split_words:"true" default:"memory"`
	MaxTurns      int    `envconfig:"MAX_TURNS" split_words:"true" default:"50"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	store := buildStore(appCfg)
	registry := buildRegistry()

	gatewayCfg := configx.MustNew[gateway.Config]("GATEWAY")
	gw, err := gateway.NewOpenAI(*gatewayCfg, registry.Infos())
	if err != nil {
		panic(err)
	}

	var notifier contract.ArtifactNotifier
	if notifyCfg, err := configx.New[notifyx.Config]("NOTIFY"); err == nil && strings.TrimSpace(notifyCfg.URL) != "" {
		notifier = notifyx.MustNew(*notifyCfg)
	}

	orch, err := orchestrator.New(
		gw,
		tool.NewDispatcher(registry),
		store,
		knowledgeBase(),
		notifier,
		*configx.MustNew[orchestrator.Config]("ORCH"),
	)
	if err != nil {
		panic(err)
	}

	runREPL(orch, appCfg.UserID, appCfg.SessionID)
}

func buildStore(cfg *AppConfig) memory.Store {
	switch strings.ToLower(strings.TrimSpace(cfg.MemoryBackend)) {
	case "redis":
		store, err := memory.NewRedisStore(*configx.MustNew[memory.RedisConfig]("REDIS"), cfg.MaxTurns)
		if err != nil {
			panic(err)
		}
		return store
	case "postgres":
		store, err := memory.NewBunStore(*configx.MustNew[memory.PostgresConfig]("POSTGRES"), cfg.MaxTurns)
		if err != nil {
			panic(err)
		}
		if err := store.Init(context.Background()); err != nil {
			panic(err)
		}
		return store
	default:
		return memory.NewInMemory(cfg.MaxTurns)
	}
}

// buildRegistry wires every tool whose configuration is present. A missing
// credential skips that tool instead of failing startup.
func buildRegistry() *tool.Registry {
	registry := tool.NewRegistry()

	if cfg, err := configx.New[tool.SearchConfig]("SEARCH"); err == nil {
		if client, err := tool.NewSearchClient(*cfg); err == nil {
			if err := tool.RegisterSearchTool(registry, client, cfg.Timeout); err != nil {
				panic(err)
			}
		}
	} else {
		log.Info().Msg("web search not configured, skipping")
	}

	if cfg, err := configx.New[tool.MapsConfig]("MAPS"); err == nil {
		if client, err := tool.NewMapsClient(*cfg); err == nil {
			if err := tool.RegisterMapsTools(registry, client, cfg.Timeout); err != nil {
				panic(err)
			}
		}
	} else {
		log.Info().Msg("maps not configured, skipping")
	}

	if cfg, err := configx.New[tool.CodeConfig]("CODE"); err == nil {
		if client, err := tool.NewCodeClient(*cfg); err == nil {
			if err := tool.RegisterCodeTool(registry, client, cfg.Timeout); err != nil {
				panic(err)
			}
		}
	} else {
		log.Info().Msg("code runner not configured, skipping")
	}

	exportCfg := configx.MustNew[tool.ExportConfig]("EXPORT")
	if err := tool.RegisterExportTool(registry, *exportCfg, 0); err != nil {
		panic(err)
	}

	if err := tool.RegisterKnowledgeTool(registry, knowledgeBase(), 3, 0); err != nil {
		panic(err)
	}

	return registry
}

var kb *retrieval.KeywordIndex

// knowledgeBase returns the shared in-process index. Content is loaded by
// the embedding pipeline in deployments; the CLI starts empty.
func knowledgeBase() *retrieval.KeywordIndex {
	if kb == nil {
		kb = retrieval.NewKeywordIndex()
	}
	return kb
}

func runREPL(orch *orchestrator.Orchestrator, userID, sessionID string) {
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Println("wayfarer ready. /deep on|off, /clear, /exit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/exit":
			return
		case line == "/clear":
			if err := orch.ClearHistory(ctx, userID, sessionID); err != nil {
				fmt.Println("error:", err)
			}
			continue
		case strings.HasPrefix(line, "/deep"):
			deep := strings.TrimSpace(strings.TrimPrefix(line, "/deep")) == "on"
			if err := orch.SetReasoningMode(userID, sessionID, deep); err != nil {
				fmt.Println("error:", err)
			}
			continue
		}

		events, err := orch.HandleMessage(ctx, userID, sessionID, line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		printEvents(events)
	}
}

func printEvents(events <-chan contract.StreamEvent) {
	for ev := range events {
		switch ev.Kind {
		case contract.EventText:
			fmt.Print(ev.Text)
		case contract.EventReasoning:
			// Dim, so the reasoning reads apart from the answer.
			fmt.Printf("\x1b[2m%s\x1b[0m", ev.Text)
		case contract.EventToolInvoked:
			fmt.Printf("\n[tool %s ...]\n", ev.ToolCall.Tool)
		case contract.EventToolResult:
			fmt.Printf("[tool %s %s]\n", ev.ToolCall.Tool, ev.ToolCall.Status)
		case contract.EventArtifact:
			fmt.Printf("\n[artifact %s %s]\n", ev.Artifact.Kind, ev.Artifact.Location)
		case contract.EventError:
			fmt.Println("\nerror:", ev.Err)
		case contract.EventDone:
			fmt.Println()
		}
	}
}
