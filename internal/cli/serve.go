package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/archive"
	"trivia-session-service/internal/bank"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/jsonfile"
	"trivia-session-service/internal/infra/memory"
	inframongo "trivia-session-service/internal/infra/mongo"
	infrapg "trivia-session-service/internal/infra/postgres"
	infraredis "trivia-session-service/internal/infra/redis"
	transport "trivia-session-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to run the service.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the quiz session engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var mongoClient *mongodriver.Client
	if cfg.Mongo.URI != "" {
		mongoClient, err = mongodriver.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return err
		}
		defer mongoClient.Disconnect(context.Background())
	}

	loader, writer := chooseBankBackend(cfg, pool, mongoClient)
	if redisClient != nil {
		ttl := config.Duration(cfg.Redis.BankTTL, 10*time.Minute)
		loader = infraredis.NewCachedBankLoader(redisClient, loader, ttl)
	}
	questionBank, err := bank.Open(ctx, loader, writer, log)
	if err != nil {
		return err
	}

	var archiveStore archive.Store
	switch {
	case redisClient != nil:
		archiveStore = infraredis.NewArchiveStore(redisClient, log)
	case cfg.Data.Dir != "":
		archiveStore, err = jsonfile.NewStore(cfg.Data.Dir)
		if err != nil {
			return err
		}
	default:
		archiveStore = memory.NewArchiveStore()
	}
	scoreArchive, err := archive.Open(ctx, archiveStore, log)
	if err != nil {
		return err
	}

	rules := app.DefaultRules()
	rules.QuestionTime = config.Duration(cfg.Quiz.QuestionTime, rules.QuestionTime)
	rules.MarkCorrect = config.Mark(cfg.Quiz.MarkCorrect, rules.MarkCorrect)
	rules.MarkWrong = config.Mark(cfg.Quiz.MarkWrong, rules.MarkWrong)

	hub := transport.NewHub(log)
	engine := app.NewEngine(
		memory.NewRegistry(),
		questionBank,
		scoreArchive,
		memory.NewStaticAuthorizer(cfg.Quiz.Admins),
		hub,
		hub,
		rules,
		log,
		app.WithQuestionEditor(questionBank),
	)
	wsHandler := transport.NewWSHandler(engine, hub, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	go runTicker(tickCtx, engine, config.Duration(cfg.Quiz.Tick, time.Second))

	go func() {
		log.Info().Str("port", finalPort).Msg("starting trivia session service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runTicker drives question expiry and progress refreshes on a fixed cadence.
func runTicker(ctx context.Context, engine *app.Engine, every time.Duration) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.Tick(ctx)
		}
	}
}

func chooseBankBackend(cfg config.Config, pool *pgxpool.Pool, mongoClient *mongodriver.Client) (bank.Loader, bank.Writer) {
	if pool != nil {
		b := infrapg.NewBank(pool)
		return b, b
	}
	if mongoClient != nil {
		db := cfg.Mongo.Database
		if db == "" {
			db = "trivia"
		}
		b := inframongo.NewBank(mongoClient.Database(db))
		return b, b
	}
	return memory.NewStaticLoader(sampleQuestions()), memory.DiscardWriter{}
}

// sampleQuestions seeds a runnable demo bank when no durable backend is set.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:           1,
			Topic:        "General",
			Text:         "What is 2 + 2?",
			Options:      []string{"3", "4", "5", "22"},
			CorrectIndex: 1,
			Explanation:  "Basic arithmetic.",
		},
		{
			ID:           2,
			Topic:        "Geography",
			Text:         "Which is the longest river in the world?",
			Options:      []string{"Amazon", "Yangtze", "Nile", "Mississippi"},
			CorrectIndex: 2,
			Explanation:  "The Nile runs about 6,650 km.",
		},
		{
			ID:           3,
			Topic:        "Geography",
			Text:         "Which country has the most time zones?",
			Options:      []string{"Russia", "USA", "France", "China"},
			CorrectIndex: 2,
			Explanation:  "France, counting its overseas territories.",
		},
	}
}
