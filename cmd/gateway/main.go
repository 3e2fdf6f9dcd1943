package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/guardline-ai/guardline/pkg/audit"
	"github.com/guardline-ai/guardline/pkg/catalog"
	"github.com/guardline-ai/guardline/pkg/config"
	"github.com/guardline-ai/guardline/pkg/conversation"
	"github.com/guardline-ai/guardline/pkg/crisis"
	"github.com/guardline-ai/guardline/pkg/detect"
	"github.com/guardline-ai/guardline/pkg/engine"
	"github.com/guardline-ai/guardline/pkg/upstream"
	"github.com/guardline-ai/guardline/pkg/verify"
)

const Version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		port := "3000"
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		runHTTPServer(port)
	case "detect":
		if len(os.Args) < 3 {
			fmt.Println("Usage: guardline detect <text>")
			os.Exit(1)
		}
		runCLIDetect(strings.Join(os.Args[2:], " "))
	case "verify":
		if len(os.Args) < 4 {
			fmt.Println("Usage: guardline verify <standard|enhanced|crisis> <response text>")
			os.Exit(1)
		}
		runCLIVerify(os.Args[2], strings.Join(os.Args[3:], " "))
	case "catalog":
		runCLICatalog()
	case "version":
		fmt.Printf("Guardline v%s\n", Version)
		fmt.Println("Vulnerability detection and response gating for conversational AI")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Guardline v%s - Vulnerability detection gateway\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  guardline serve [port]              Start HTTP gateway (default: 3000)")
	fmt.Println("  guardline detect <text>             Classify one message")
	fmt.Println("  guardline verify <level> <text>     Check a response at a protection level")
	fmt.Println("  guardline catalog                   Show the active indicator catalog")
	fmt.Println("  guardline version                   Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  guardline serve 8080")
	fmt.Println("  guardline detect \"I lost my job and this is my last hope\"")
	fmt.Println("  guardline verify crisis \"Things will get better, guaranteed success\"")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  GUARDLINE_CATALOG            YAML catalog overriding built-in indicators")
	fmt.Println("  GUARDLINE_STORE              Session store: memory (default) or redis")
	fmt.Println("  GUARDLINE_REDIS_ADDR         Redis address for the redis store")
	fmt.Println("  GUARDLINE_POSTGRES_DSN       Audit to Postgres instead of a JSONL file")
	fmt.Println("  GUARDLINE_UPSTREAM_URL       OpenAI-compatible endpoint for proxy mode")
	fmt.Println("  GUARDLINE_UPSTREAM_API_KEY   Bearer key for the upstream model")
}

// buildCatalog loads the configured YAML catalog or falls back to built-ins.
func buildCatalog(cfg *config.Config) *catalog.Catalog {
	if cfg.CatalogPath == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: loading catalog %s: %v", cfg.CatalogPath, err)
	}
	log.Printf("[STARTUP] Loaded catalog from %s (%d indicators)", cfg.CatalogPath, cat.TotalIndicators())
	return cat
}

// buildStore creates the configured session store backend.
func buildStore(cfg *config.Config) conversation.Store {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		log.Printf("[STARTUP] Using Redis session store at %s", cfg.RedisAddr)
		return conversation.NewRedisStoreFromAddr(cfg.RedisAddr, cfg.SessionTTL)
	default:
		log.Println("[STARTUP] Using in-memory session store")
		return conversation.NewMemoryStore(conversation.WithMaxAge(cfg.SessionTTL))
	}
}

// buildAuditSink creates the configured audit backend.
func buildAuditSink(cfg *config.Config) audit.Sink {
	switch cfg.AuditBackend {
	case config.AuditPostgres:
		sink, err := audit.NewPostgresSink(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("[STARTUP] FATAL: connecting audit database: %v", err)
		}
		log.Println("[STARTUP] Auditing to Postgres")
		return sink
	case config.AuditFile:
		sink, err := audit.NewFileSink(cfg.AuditLogPath)
		if err != nil {
			log.Fatalf("[STARTUP] FATAL: opening audit log: %v", err)
		}
		log.Printf("[STARTUP] Auditing to %s", cfg.AuditLogPath)
		return sink
	default:
		return audit.NopSink{}
	}
}

func buildEngine(cfg *config.Config) *engine.Engine {
	cat := buildCatalog(cfg)
	tracker := conversation.NewTracker(
		conversation.WithStore(buildStore(cfg)),
		conversation.WithHistoryWindow(cfg.HistoryWindow),
		conversation.WithAmplificationThreshold(cfg.AmplificationThreshold),
		conversation.WithWaitDelay(cfg.WaitDelay),
	)
	return engine.New(
		engine.WithCatalog(cat),
		engine.WithTracker(tracker),
		engine.WithAuditSink(buildAuditSink(cfg)),
	)
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runHTTPServer(port string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()

	eng := buildEngine(cfg)
	defer eng.Close()

	model := upstream.NewClient(
		cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, cfg.UpstreamModel,
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithMaxConcurrent(cfg.MaxUpstreamCalls),
	)

	app := newApp(eng, model)

	log.Printf("[STARTUP] Guardline gateway starting on :%s", port)
	log.Printf("Endpoints:")
	log.Printf("  GET    /health                           - Health check")
	log.Printf("  POST   /detect                           - Classify one message")
	log.Printf("  POST   /track                            - Classify and track a conversation turn")
	log.Printf("  POST   /crisis                           - Crisis assessment and resources")
	log.Printf("  POST   /verify                           - Verify a candidate response")
	log.Printf("  GET    /conversations/:id                - Conversation state")
	log.Printf("  POST   /conversations/:id/confirm-wait   - Release a held crisis response")
	log.Printf("  POST   /conversations/:id/acknowledge    - Mark the turn delivered")
	log.Printf("  DELETE /conversations/:id                - Reset a conversation")
	log.Printf("  POST   /v1/chat/completions              - Gated upstream proxy")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal(err)
	}
}

// newApp wires every route onto a fresh Fiber app.
func newApp(eng *engine.Engine, model *upstream.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Guardline",
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"version":    Version,
			"indicators": eng.Catalog().TotalIndicators(),
			"upstream":   model.LimiterStats(),
		})
	})

	// Stateless per-message classification.
	app.Post("/detect", func(c fiber.Ctx) error {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		return c.JSON(eng.Detect(c.Context(), req.Text))
	})

	// Stateful: classify and fold into the conversation.
	app.Post("/track", func(c fiber.Ctx) error {
		var req struct {
			ConversationID string `json:"conversation_id"`
			Text           string `json:"text"`
			AITurn         string `json:"ai_turn"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		if req.ConversationID == "" {
			req.ConversationID = uuid.NewString()
		}

		result, state, err := eng.Track(c.Context(), req.ConversationID, req.Text, req.AITurn)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"conversation_id": req.ConversationID,
			"detection":       result,
			"state":           state,
		})
	})

	// Crisis assessment for a message (classification + resource bundle).
	app.Post("/crisis", func(c fiber.Ctx) error {
		var req struct {
			ConversationID string `json:"conversation_id"`
			Text           string `json:"text"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}

		result := eng.Detect(c.Context(), req.Text)
		assessment := eng.AssessCrisis(c.Context(), req.ConversationID, result)
		return c.JSON(fiber.Map{
			"detection":  result,
			"assessment": assessment,
			"message":    eng.CrisisMessage(assessment),
		})
	})

	// Response verification against the VRs.
	app.Post("/verify", func(c fiber.Ctx) error {
		var req struct {
			Response          string `json:"response"`
			Level             string `json:"level"`
			CrisisType        string `json:"crisis_type"`
			AmplificationRisk bool   `json:"amplification_risk"`
			ConversationID    string `json:"conversation_id"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}

		level, err := parseLevel(req.Level)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}

		violations := eng.VerifyResponse(c.Context(), req.ConversationID,
			req.Response, level, crisis.Type(req.CrisisType), req.AmplificationRisk)
		return c.JSON(fiber.Map{
			"violations": violations,
			"blocked":    verify.HasBlocking(violations),
		})
	})

	// Conversation lifecycle.
	app.Get("/conversations/:id", func(c fiber.Ctx) error {
		state, err := eng.Evaluate(c.Context(), c.Params("id"))
		if err != nil {
			return conversationError(c, err)
		}
		return c.JSON(state)
	})

	app.Post("/conversations/:id/confirm-wait", func(c fiber.Ctx) error {
		state, err := eng.ConfirmWait(c.Context(), c.Params("id"))
		if err != nil {
			return conversationError(c, err)
		}
		return c.JSON(state)
	})

	app.Post("/conversations/:id/acknowledge", func(c fiber.Ctx) error {
		state, err := eng.Acknowledge(c.Context(), c.Params("id"))
		if err != nil {
			return conversationError(c, err)
		}
		return c.JSON(state)
	})

	app.Delete("/conversations/:id", func(c fiber.Ctx) error {
		if err := eng.Reset(c.Context(), c.Params("id")); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendStatus(204)
	})

	// OpenAI-compatible proxy: detect on the way in, verify on the way out.
	app.Post("/v1/chat/completions", func(c fiber.Ctx) error {
		return handleChatProxy(c, eng, model)
	})

	return app
}

func conversationError(c fiber.Ctx, err error) error {
	if err == conversation.ErrUnknownConversation {
		return c.Status(404).JSON(fiber.Map{"error": "unknown conversation"})
	}
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

func parseLevel(s string) (detect.ProtectionLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "STANDARD":
		return detect.LevelStandard, nil
	case "ENHANCED":
		return detect.LevelEnhanced, nil
	case "CRISIS":
		return detect.LevelCrisis, nil
	default:
		return 0, fmt.Errorf("unknown protection level %q", s)
	}
}

// handleChatProxy runs one gated exchange: classify the user's last message,
// fold it into the conversation, fetch the upstream completion, verify it,
// and substitute the crisis resource message when delivery would violate
// VR-24 at Crisis level.
func handleChatProxy(c fiber.Ctx, eng *engine.Engine, model *upstream.Client) error {
	var req upstream.ChatRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	userText := lastMessage(req.Messages, "user")
	if userText == "" {
		return c.Status(400).JSON(fiber.Map{"error": "no user message in request"})
	}
	priorAITurn := lastMessage(req.Messages, "assistant")

	conversationID := c.Get("X-Conversation-ID")
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	c.Set("X-Conversation-ID", conversationID)

	result, state, err := eng.Track(c.Context(), conversationID, userText, priorAITurn)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := model.Complete(c.Context(), req)
	if err != nil {
		log.Printf("[PROXY] upstream call failed (conversation %s): %v", conversationID, err)
		return c.Status(502).JSON(fiber.Map{"error": "upstream model unavailable"})
	}

	assessment := eng.AssessCrisis(c.Context(), conversationID, result)
	content := upstream.Content(resp)
	violations := eng.VerifyResponse(c.Context(), conversationID,
		content, state.Level, assessment.CrisisType, state.AmplificationRisk)

	if verify.HasBlocking(violations) {
		// The upstream answer omitted mandatory crisis resources. Deliver the
		// resource message instead, never the unverified response.
		log.Printf("[PROXY] blocking response for conversation %s (%d violations)",
			conversationID, len(violations))
		resp.Choices[0].Message.Content = eng.CrisisMessage(assessment)
		resp.Choices[0].FinishReason = "content_filter"
	}

	// Delivering a resource-bearing response is the confirmed crisis action,
	// whether it came from upstream or from substitution.
	if state.Level == detect.LevelCrisis {
		if _, err := eng.ConfirmWait(c.Context(), conversationID); err != nil {
			log.Printf("[PROXY] confirm-wait failed for conversation %s: %v", conversationID, err)
		}
	}

	if _, err := eng.Acknowledge(c.Context(), conversationID); err != nil {
		log.Printf("[PROXY] acknowledge failed for conversation %s: %v", conversationID, err)
	}

	return c.JSON(resp)
}

func lastMessage(messages []upstream.Message, role string) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == role {
			return messages[i].Content
		}
	}
	return ""
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLIDetect(text string) {
	eng := engine.New()
	defer eng.Close()

	ctx := context.Background()
	result := eng.Detect(ctx, text)
	assessment := eng.AssessCrisis(ctx, "", result)

	out := struct {
		Detection  *detect.DetectionResult `json:"detection"`
		Assessment *crisis.Assessment      `json:"assessment"`
		Message    string                  `json:"message,omitempty"`
	}{result, assessment, eng.CrisisMessage(assessment)}

	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func runCLIVerify(levelArg, response string) {
	level, err := parseLevel(levelArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	eng := engine.New()
	defer eng.Close()

	violations := eng.VerifyResponse(context.Background(), "", response, level, crisis.TypeUnspecified, false)
	out := struct {
		Violations []verify.Violation `json:"violations"`
		Blocked    bool               `json:"blocked"`
	}{violations, verify.HasBlocking(violations)}

	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func runCLICatalog() {
	cat := catalog.Default()
	fmt.Printf("Indicator catalog: %d indicators across %d categories\n\n",
		cat.TotalIndicators(), len(catalog.Categories()))
	for _, category := range catalog.Categories() {
		indicators := cat.IndicatorsFor(category)
		fmt.Printf("%s (%d):\n", category, len(indicators))
		for _, ind := range indicators {
			fmt.Printf("  %-40s weight %d\n", ind.Pattern, ind.Weight)
		}
		fmt.Println()
	}
}
