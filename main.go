package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/curiopass/support-agent/internal/agent/graph"
	"github.com/curiopass/support-agent/internal/agent/handlers"
	"github.com/curiopass/support-agent/internal/agent/llm"
	"github.com/curiopass/support-agent/internal/agent/model"
	"github.com/curiopass/support-agent/internal/agent/repo"
	"github.com/curiopass/support-agent/internal/core"
	"github.com/curiopass/support-agent/internal/kb"
	"github.com/curiopass/support-agent/internal/notify"
	"github.com/curiopass/support-agent/internal/store/helpdesk"
	"github.com/curiopass/support-agent/internal/store/members"
	logx "github.com/curiopass/support-agent/pkg/logger"
	pkgredis "github.com/curiopass/support-agent/pkg/redis"
)

// AppConfig defines all configurable parameters for the support agent,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis  pkgredis.Config
	Stores model.StoreConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Classifier   model.ClassifierModelConfig
	Composer     model.ComposerModelConfig
	Conversation model.ConversationConfig
	Retrieval    model.RetrievalConfig
	Escalation   notify.Config
}

func main() {
	ctx := context.Background()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}
	conversationRepo := repo.NewRedisConversationRepository(rdb, ttl)

	memberStore, err := members.Open(cfg.Stores.MembersPath)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open members store")
	}
	defer memberStore.Close()

	deskStore, err := helpdesk.Open(cfg.Stores.HelpdeskPath)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open helpdesk store")
	}
	defer deskStore.Close()

	articles, err := kb.LoadCorpus(cfg.Retrieval.CorpusPath)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to load knowledge corpus")
	}

	models, err := llm.NewGeminiModels(ctx, llm.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Classifier: cfg.Classifier,
		Composer:   cfg.Composer,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Gemini models")
	}

	runner, err := graph.BuildSupportGraph(ctx, graph.Config{
		Classifier:       models.Classifier,
		Operations:       handlers.NewOperationsHandler(memberStore, models.Composer),
		Knowledge:        handlers.NewKnowledgeResolver(kb.NewRetriever(articles, cfg.Retrieval.MinConfidence)),
		Escalation:       handlers.NewEscalationHandler(deskStore, notify.New(cfg.Escalation), models.Composer),
		Conversation:     cfg.Conversation,
		ConversationRepo: conversationRepo,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build support graph")
	}

	conversationID := uuid.NewString()
	if cfg.Conversation.UserID != "" {
		if err := conversationRepo.SetScratch(ctx, conversationID, model.ScratchUserID, cfg.Conversation.UserID); err != nil {
			logx.Fatal().Err(err).Msg("Failed to bind member to conversation")
		}
	}

	logx.Info().Str("conversation_id", conversationID).Msg("support agent ready")
	fmt.Println("Type your question (ctrl-d or 'exit' to quit).")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		response, err := runner.Invoke(ctx, model.QueryInput{
			ConversationID: conversationID,
			Query:          query,
		})
		if err != nil {
			logx.Error().Err(err).Msg("turn failed")
			fmt.Println("agent> Something went wrong on our side. Please try again.")
			continue
		}
		fmt.Printf("agent> %s\n", response)
	}

	fmt.Println("Bye.")
}
