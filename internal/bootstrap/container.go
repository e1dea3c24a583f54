package bootstrap

import (
	"context"
	"log"

	"meeting-moderator-be/internal/analyzer"
	"meeting-moderator-be/internal/config"
	"meeting-moderator-be/internal/controller"
	"meeting-moderator-be/internal/handler"
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/qa"
	"meeting-moderator-be/internal/service"
	"meeting-moderator-be/internal/store"
	"meeting-moderator-be/internal/websocket"
	"meeting-moderator-be/pkg/llm"
	"meeting-moderator-be/pkg/llm/factory"
	"meeting-moderator-be/pkg/recall"

	pktNats "meeting-moderator-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	MeetingController controller.IMeetingController
	WebhookController controller.IWebhookController

	// Background services (exposed for main.go to run)
	ArchiverService     service.IArchiverService
	NotificationService service.INotificationService
	AnalyzerRunner      service.IAnalyzerRunner

	// WebSockets
	LiveHandler  *handler.LiveHandler
	WebSocketHub *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	sessionStore := store.NewStore(cfg.Archive.Retention)

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Initialize LLM provider based on config
	llmProvider, err := factory.NewLLMProvider(
		cfg.LLM.Provider,
		cfg.LLM.Model,
		cfg.LLM.BaseURL,
		cfg.LLM.APIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.LLM.Provider, cfg.LLM.Model)

	classifier := llm.NewClassifier(llmProvider, cfg.LLM.Timeout, cfg.LLM.Temperature, cfg.LLM.MaxTokens)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	}

	// A nil *Publisher must stay a nil interface so the publish guards hold.
	var eventBus service.EventPublisher
	var analyzerBus analyzer.EventPublisher
	if natsPub != nil {
		eventBus = natsPub
		analyzerBus = natsPub
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	// WebSocket hub
	wsLogger := logger.NewIsolatedLogger("logs/live.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// Meeting platform client
	recallClient := recall.NewClient(
		cfg.Recall.APIKey,
		cfg.Recall.BaseURL,
		cfg.Recall.BotName,
		cfg.Recall.JoinMessage,
		cfg.Recall.ChatMessageCap,
		sysLogger,
	)

	// 3. Analysis loops
	tangentDetector := analyzer.NewTangentDetector(sessionStore, classifier, recallClient, analyzerBus, cfg.Tangent, sysLogger)
	topicTracker := analyzer.NewTopicTracker(sessionStore, classifier, recallClient, analyzerBus, cfg.Topic, sysLogger)
	runner := service.NewAnalyzerRunner(sysLogger, tangentDetector, topicTracker)

	qaEngine := qa.NewEngine(sessionStore, classifier, cfg.QA, sysLogger)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Archive.Topic, pubSub)
	archiverService := service.NewArchiverService(pubSub, cfg.Archive.Topic, cfg.Archive.Dir, sysLogger)

	meetingService := service.NewMeetingService(
		sessionStore,
		recallClient,
		runner,
		qaEngine,
		classifier,
		archiverService,
		eventBus,
		wsHub,
		cfg,
		sysLogger,
	)

	transcriptService := service.NewTranscriptService(sessionStore, publisherService, wsHub, sysLogger)
	webhookService := service.NewWebhookService(sessionStore, transcriptService, meetingService, recallClient, cfg, sysLogger)

	var notificationService service.INotificationService
	if natsSub != nil {
		notificationService = service.NewNotificationService(natsSub, wsHub, wsLogger)
	}

	return &Container{
		MeetingController: controller.NewMeetingController(meetingService),
		WebhookController: controller.NewWebhookController(webhookService, cfg.Recall.WebhookToken, sysLogger),

		ArchiverService:     archiverService,
		NotificationService: notificationService,
		AnalyzerRunner:      runner,

		LiveHandler:  handler.NewLiveHandler(sessionStore, wsHub, wsLogger),
		WebSocketHub: wsHub,
	}
}
