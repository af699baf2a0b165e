package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
	_ "github.com/wilhg/agentchat/pkg/adapters/llm/gemini"
	_ "github.com/wilhg/agentchat/pkg/adapters/llm/openai"
	_ "github.com/wilhg/agentchat/pkg/adapters/llm/openrouter"
	"github.com/wilhg/agentchat/pkg/agent"
	"github.com/wilhg/agentchat/pkg/capability"
	"github.com/wilhg/agentchat/pkg/httpapi"
	"github.com/wilhg/agentchat/pkg/mcpserver"
	"github.com/wilhg/agentchat/pkg/otel"
	"github.com/wilhg/agentchat/pkg/session"
	"github.com/wilhg/agentchat/pkg/tool"
	"github.com/wilhg/agentchat/pkg/transcript"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var (
		showVersion bool
		serve       bool
		mcpServe    bool
		addr        string
		agentName   string
		provider    string
		dbURL       string
		otelStdout  bool
	)

	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.BoolVar(&serve, "serve", false, "run the HTTP/websocket server instead of the terminal chat")
	flag.BoolVar(&mcpServe, "mcp", false, "serve the tool catalog over MCP on stdin/stdout")
	flag.StringVar(&addr, "addr", getEnv("AGENTCHAT_ADDR", ":8080"), "http listen address")
	flag.StringVar(&agentName, "agent", "", "agent to chat with (default: last used, falling back to agent-builder)")
	flag.StringVar(&provider, "provider", getEnv("AGENTCHAT_PROVIDER", "openrouter"), "model provider: openrouter, openai, gemini")
	flag.StringVar(&dbURL, "db", getEnv("AGENTCHAT_DB", ""), "transcript database URL (sqlite:... or postgres://...)")
	flag.BoolVar(&otelStdout, "otel-stdout", false, "write trace spans to stdout")
	flag.Parse()

	if showVersion {
		fmt.Printf("agentchat %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, serve, mcpServe, addr, agentName, provider, dbURL, otelStdout); err != nil {
		fmt.Fprintf(os.Stderr, "agentchat: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, serve, mcpServe bool, addr, agentName, provider, dbURL string, otelStdout bool) error {
	shutdown, err := otel.Init(ctx, otel.Config{ServiceName: "agentchat", ServiceVersion: version, UseStdout: otelStdout})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	agents, err := agent.DefaultStore()
	if err != nil {
		return fmt.Errorf("open agent store: %w", err)
	}
	if _, err := agents.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap agent-builder: %w", err)
	}

	catalog, err := tool.Builtin()
	if err != nil {
		return fmt.Errorf("build tool catalog: %w", err)
	}
	caps := capability.Builtin()

	if mcpServe {
		srv := mcpserver.New("agentchat", version)
		granted := map[string]bool{}
		for _, name := range catalog.Names() {
			granted[name] = true
		}
		inv := tool.Invocation{Agents: agents, Session: mcpInfo{}}
		if err := srv.RegisterCatalog(catalog, granted, inv); err != nil {
			return fmt.Errorf("register mcp tools: %w", err)
		}
		return srv.Serve(ctx)
	}

	var transcripts *transcript.Store
	if dbURL == "" {
		dbURL = "sqlite:file:" + agents.Path("chat.sqlite") + "?cache=shared&_pragma=busy_timeout(5000)"
	}
	transcripts, err = transcript.Open(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("open transcript store: %w", err)
	}
	defer transcripts.Close()
	if err := transcripts.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate transcript store: %w", err)
	}

	streamer, err := buildStreamer(ctx, provider)
	if err != nil {
		return err
	}

	if serve {
		srv := httpapi.NewServer(httpapi.Options{
			Agents:       agents,
			Capabilities: caps,
			Catalog:      catalog,
			Streamer:     streamer,
			Transcripts:  transcripts,
		})
		httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}
		go func() {
			<-ctx.Done()
			_ = httpServer.Shutdown(context.Background())
		}()
		fmt.Printf("listening on %s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	return runChat(ctx, chatDeps{
		agents:      agents,
		caps:        caps,
		catalog:     catalog,
		streamer:    streamer,
		transcripts: transcripts,
	}, agentName)
}

// mcpInfo satisfies tool.SessionInfo for catalog exports that run
// outside a chat session.
type mcpInfo struct{}

func (mcpInfo) ModelName() string             { return "" }
func (mcpInfo) ContextUsage() (int, int, int) { return 0, 0, 0 }

func buildStreamer(ctx context.Context, provider string) (llm.Streamer, error) {
	factory, ok := llm.Resolve(provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	cfg := map[string]any{}
	if provider == "openrouter" {
		cfg["api_key"] = os.Getenv("OPENROUTER_API_KEY")
	}
	return factory(ctx, cfg)
}

type chatDeps struct {
	agents      *agent.Store
	caps        *capability.Registry
	catalog     *tool.Catalog
	streamer    llm.Streamer
	transcripts *transcript.Store
}

// runChat is the terminal chat loop with slash commands.
func runChat(ctx context.Context, deps chatDeps, agentName string) error {
	if agentName == "" {
		agentName = deps.agents.LastAgent()
		if agentName == "" || !deps.agents.Exists(agentName) {
			agentName = agent.BuilderName
		}
	}

	sess, err := openSession(ctx, deps, agentName)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()
	printInfo(sess)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sink := termSink{}

	for {
		fmt.Printf("\n%s> ", sess.AgentName())
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			cmd, arg, _ := strings.Cut(line, " ")
			switch cmd {
			case "/exit", "/quit":
				return nil
			case "/help":
				printHelp()
			case "/clear":
				if err := sess.ClearHistory(ctx); err != nil {
					fmt.Printf("error: %v\n", err)
				} else {
					fmt.Println("History cleared.")
				}
			case "/context":
				printContext(sess)
			case "/agents":
				printAgents(deps.agents)
			case "/switch":
				arg = strings.TrimSpace(arg)
				if arg == "" {
					fmt.Println("usage: /switch <agent>")
					continue
				}
				next, err := openSession(ctx, deps, arg)
				if err != nil {
					fmt.Printf("error: %v\n", err)
					continue
				}
				_ = sess.Close()
				sess = next
				_ = deps.agents.SetLastAgent(arg)
				printInfo(sess)
			default:
				fmt.Printf("unknown command %s (try /help)\n", cmd)
			}
			continue
		}

		if err := sess.HandleUserMessage(ctx, line, sink); err != nil {
			fmt.Printf("\nerror: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func openSession(ctx context.Context, deps chatDeps, name string) (*session.Session, error) {
	a, err := deps.agents.Load(name)
	if err != nil {
		return nil, err
	}
	return session.New(ctx, session.Options{
		Agent:        a,
		Agents:       deps.agents,
		Capabilities: deps.caps,
		Catalog:      deps.catalog,
		Streamer:     deps.streamer,
		Transcripts:  deps.transcripts,
	})
}

func printInfo(sess *session.Session) {
	info := sess.Info()
	fmt.Println(info.Message)
	if len(info.Capabilities) > 0 {
		fmt.Printf("capabilities: %s\n", strings.Join(info.Capabilities, ", "))
	}
	fmt.Printf("tools: %s\n", strings.Join(info.Tools, ", "))
}

func printHelp() {
	fmt.Println(`commands:
  /help            show this help
  /clear           clear conversation history
  /context         show token usage for this session
  /agents          list available agents
  /switch <agent>  chat with a different agent
  /exit            leave the chat`)
}

func printContext(sess *session.Session) {
	model := sess.ModelName()
	limit := tool.ContextLimit(model)
	u := sess.Usage()
	fmt.Printf("model: %s\ncontext limit: %d tokens\n", model, limit)
	if u.TotalTokens == 0 {
		fmt.Println("no usage recorded yet")
		var transcriptText strings.Builder
		for _, rec := range sess.History() {
			transcriptText.WriteString(rec.Message)
			transcriptText.WriteString("\n")
		}
		if transcriptText.Len() > 0 {
			fmt.Printf("estimated transcript tokens: %d\n", session.EstimateTokens(model, transcriptText.String()))
		}
		return
	}
	fmt.Printf("prompt: %d  completion: %d  total: %d (%.1f%% of limit)\n",
		u.PromptTokens, u.CompletionTokens, u.TotalTokens,
		float64(u.TotalTokens)/float64(limit)*100)
}

func printAgents(agents *agent.Store) {
	names, err := agents.List()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	last := agents.LastAgent()
	for _, name := range names {
		a, err := agents.Load(name)
		if err != nil {
			continue
		}
		marker := " "
		if name == last {
			marker = "*"
		}
		caps := "[chat only]"
		if len(a.Capabilities) > 0 {
			caps = strings.Join(a.Capabilities, ", ")
		}
		fmt.Printf("%s %s - %s (%s)\n", marker, name, a.Description, caps)
	}
}

// termSink renders session events for the terminal. Streamed content
// prints as it arrives; the agent message itself is not reprinted.
type termSink struct{}

func (termSink) Send(ctx context.Context, ev session.Event) error {
	switch ev.Type {
	case session.EventStreamChunk:
		if ev.IsComplete {
			fmt.Println()
		} else {
			fmt.Print(ev.Content)
		}
	case session.EventToolStart:
		fmt.Printf("\n[tool] %s\n", ev.ToolName)
	case session.EventToolResult:
		status := "ok"
		if !ev.Success {
			status = "failed"
		}
		fmt.Printf("[tool] %s %s\n", ev.ToolName, status)
	case session.EventError:
		fmt.Printf("\n[error] %s\n", ev.Message)
	}
	return nil
}

func getEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
