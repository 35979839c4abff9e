package appServer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groupsend/config"
	"groupsend/internal/channel"
	repository "groupsend/internal/database/postgres"
	"groupsend/internal/notify"
	"groupsend/internal/service"
	"groupsend/internal/transport"
	"groupsend/internal/worker"

	"groupsend/pkg/postgres"
	"groupsend/pkg/queue"
	"groupsend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	messageRepo := repository.NewMessageRepository(db)
	memberRepo := repository.NewMemberRepository(db)

	// Initialize delivery channels
	var senders []channel.Sender
	if cfg.SMS.Enabled {
		senders = append(senders, channel.NewSMSSender(cfg.SMS.APIURL, cfg.SMS.APIKey, cfg.SMS.Sender))
		logrus.Info("SMS channel initialized")
	}
	if cfg.Email.Enabled {
		senders = append(senders, channel.NewEmailSender(
			cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password, cfg.Email.From))
		logrus.Info("Email channel initialized")
	}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		senders = append(senders, channel.NewTelegramSender(cfg.Telegram.BotToken))
		logrus.Info("Telegram channel initialized")
	}
	if len(senders) == 0 {
		logrus.Warn("No delivery channels configured, dispatches will fail")
	}

	// Initialize status publisher
	var notifier notify.Publisher = notify.NopPublisher{}
	if cfg.Notify.Enabled && cfg.Notify.AMQPURL != "" {
		rabbit, err := notify.NewRabbitPublisher(notify.RabbitConfig{URL: cfg.Notify.AMQPURL})
		if err != nil {
			logrus.Errorf("Failed to initialize RabbitMQ publisher: %v. Continuing without status events...", err)
		} else {
			notifier = rabbit
			defer rabbit.Close()
			logrus.Info("RabbitMQ status publisher initialized")
		}
	}

	// Initialize redis timer queue
	redisClient := redis.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()

	queueConfig := queue.DefaultRedisQueueConfig()
	queueConfig.Addr = cfg.Redis.URL
	if queueConfig.Addr == "" {
		queueConfig.Addr = fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	}
	queueConfig.Password = cfg.Redis.Password
	queueConfig.DB = cfg.Redis.DB
	if cfg.Queue.MaxRetries > 0 {
		queueConfig.MaxRetries = cfg.Queue.MaxRetries
	}
	if cfg.Queue.BaseDelay > 0 {
		queueConfig.BaseDelay = cfg.Queue.BaseDelay
	}
	if cfg.Queue.PollInterval > 0 {
		queueConfig.PollInterval = cfg.Queue.PollInterval
	}
	queueConfig.EnableDLQ = cfg.Queue.EnableDLQ

	retryManager := queue.NewRetryManager(queueConfig.MaxRetries, queueConfig.BaseDelay)
	dlqHandler := queue.NewDefaultDLQHandler(redisClient, queueConfig.DLQ, queueConfig.ReadyQueue)

	redisQueue, err := queue.NewRedisQueue(queueConfig, retryManager, dlqHandler)
	if err != nil {
		logrus.Fatalf("Failed to initialize Redis queue: %v", err)
	}
	defer redisQueue.Close()
	taskPublisher := service.NewQueueAdapter(redisQueue)

	// Initialize services
	snapshotter := service.NewSnapshotter(memberRepo)
	messageService := service.NewMessageService(messageRepo, memberRepo, snapshotter, taskPublisher)
	dispatchService := service.NewDispatchService(messageRepo, memberRepo, senders, notifier, taskPublisher)

	// Start queue consumer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := redisQueue.Subscribe(ctx, service.TaskHandler(dispatchService)); err != nil {
			logrus.Errorf("Queue subscriber error: %v", err)
		}
	}()
	logrus.Info("Queue subscriber started")

	// Initialize sweep worker
	sweepInterval := time.Duration(cfg.Worker.SweepInterval) * time.Minute
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	sweepWorker := worker.NewSweepWorker(dispatchService, sweepInterval)
	go sweepWorker.Start(ctx)
	logrus.Info("Sweep worker started")

	// Initialize handlers
	messageHandler := transport.NewMessageHandler(messageService, dispatchService)
	callbackHandler := transport.NewCallbackHandler(dispatchService)

	// Setup HTTP server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(messageHandler, callbackHandler, cfg.Callback.Secret)); err != nil {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
