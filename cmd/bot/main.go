package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"team-pulse/internal/asked"
	"team-pulse/internal/botkit"
	"team-pulse/internal/config"
	"team-pulse/internal/conversation"
	"team-pulse/internal/karma"
	"team-pulse/internal/llm"
	"team-pulse/internal/members"
	"team-pulse/internal/oneonone"
	"team-pulse/internal/pending"
	"team-pulse/internal/praise"
	"team-pulse/internal/question"
	"team-pulse/internal/rooms"
	"team-pulse/internal/scheduler"
	"team-pulse/internal/storage"
	"team-pulse/internal/telegram"
	"team-pulse/internal/values"
	"team-pulse/internal/wellness"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	membersRepo, err := members.NewFileRepository(cfg.MembersFilePath)
	if err != nil {
		log.Fatalf("failed to init members repo: %v", err)
	}
	initial := cfg.AllowedUsers
	if cfg.AdminUserID != 0 {
		initial = append(initial, cfg.AdminUserID)
	}
	membersSvc, err := members.NewWithRepo(membersRepo, initial)
	if err != nil {
		log.Fatalf("failed to init members: %v", err)
	}

	pendingRepo, err := pending.NewFileRepository(cfg.PendingFilePath)
	if err != nil {
		log.Fatalf("failed to init pending repo: %v", err)
	}

	bot, err := telegram.New(cfg.TelegramBotToken, membersSvc, pendingRepo, cfg.AdminUserID, cfg.MessageParseMode, loc)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	self := bot.Self()
	settings := botkit.Settings{
		Name:           cfg.BotName,
		BotUserID:      self.ID,
		BotUsername:    self.Username,
		PraiseRoomID:   cfg.PraiseChatID,
		AnswersRoomID:  cfg.AnswersChatID,
		ServerBaseURL:  cfg.ServerBaseURL,
		MeetingBaseURL: cfg.MeetingBaseURL,
	}
	cache := members.NewCache(bot.Members, cfg.MembersCacheTTL)
	kit := botkit.New(settings, bot, bot, cache)
	states := conversation.NewStore(store)
	sched := scheduler.New(loc)

	praiseWF := praise.New(kit, states,
		karma.NewLedger(store, karma.KarmaKey),
		karma.NewLedger(store, karma.PraiserKey))
	questionWF := question.New(kit, states, store, newQuestionSource(cfg))
	oneOnOneWF := oneonone.New(kit, states, store)
	askedWF := asked.New(kit, store, sched)
	valuesWF := values.New(kit, store, karma.NewLedger(store, karma.ValuePointsKey), cfg.Values)
	wellnessWF := wellness.New(kit, store)

	bot.Attach(settings, telegram.Workflows{
		Dispatcher: conversation.NewDispatcher(states, kit, praiseWF, questionWF, oneOnOneWF),
		Praise:     praiseWF,
		Question:   questionWF,
		OneOnOne:   oneOnOneWF,
		Asked:      askedWF,
		Values:     valuesWF,
		Rooms:      rooms.New(kit, store),
	}, cache.Invalidate)

	jobs := []struct {
		name, spec string
		job        scheduler.Job
	}{
		{"praise", cfg.PraiseCron, func(ctx context.Context) error { return praiseWF.Run(ctx) }},
		{"scoreboard", cfg.ScoreboardCron, praiseWF.SendScoreboard},
		{"question", cfg.QuestionCron, questionWF.Run},
		{"one-on-one", cfg.OneOnOneCron, oneOnOneWF.Run},
		{"wellness", cfg.WellnessCron, wellnessWF.Run},
		{"values", cfg.ValuesCron, valuesWF.Run},
	}
	for _, j := range jobs {
		if j.spec == "" {
			log.Printf("ℹ️ %s is not scheduled", j.name)
			continue
		}
		if err := sched.AddRecurring(j.name, j.spec, j.job); err != nil {
			log.Fatalf("failed to schedule %s: %v", j.name, err)
		}
	}
	if err := askedWF.Resume(ctx); err != nil {
		log.Printf("⚠️ failed to resume question digests: %v", err)
	}

	sched.Start()
	defer sched.Stop()

	bot.Start(ctx)
	log.Println("👋 Shutting down")
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		log.Printf("🗄 using DynamoDB table %s", cfg.DynamoDBTable)
		return storage.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable)
	default:
		log.Printf("🗄 using file store %s", cfg.StoreFilePath)
		return storage.NewFileStore(cfg.StoreFilePath)
	}
}

func newQuestionSource(cfg *config.Config) question.Source {
	bank := question.NewBank()
	if cfg.QuestionSource != config.SourceLLM {
		return bank
	}
	client, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider))
	if err != nil {
		log.Printf("⚠️ llm question source unavailable, using the built-in bank: %v", err)
		return bank
	}
	return question.NewLLMSource(client, cfg.QuestionPrompt, bank)
}
