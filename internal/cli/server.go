package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/event"
	"live-quiz-service/internal/importer"
	"live-quiz-service/internal/infra/memory"
	pgstore "live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/schedule"
	"live-quiz-service/internal/telemetry"
	transport "live-quiz-service/internal/transport/http"
	"live-quiz-service/internal/transport/tcp"
)

const (
	defaultHTTPPort = "8080"
	defaultTCPPort  = "9000"
)

type startOptions struct {
	port        string
	tcpPort     string
	questions   string
	timer       bool
	timeLimit   int
	shuffleSeed int64
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(root *rootOptions) *cobra.Command {
	return newStartCmd(root, &startOptions{})
}

func newStartCmd(root *rootOptions, opts *startOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			opts.apply(cmd, &cfg)
			return runServer(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.port, "port", defaultHTTPPort, "HTTP port for websocket players and the host API (env: QUIZ_PORT)")
	fs.StringVar(&opts.tcpPort, "tcp-port", defaultTCPPort, "TCP port for line-delimited JSON players (env: QUIZ_TCP_PORT)")
	fs.StringVarP(&opts.questions, "questions", "q", "", "question file or pg:<id> to load on startup (env: QUIZ_QUESTIONS)")
	fs.BoolVar(&opts.timer, "timer", false, "expire questions after --time-limit seconds (env: QUIZ_TIMER)")
	fs.IntVar(&opts.timeLimit, "time-limit", 30, "seconds per question in timer mode (env: QUIZ_TIME_LIMIT)")
	fs.Int64Var(&opts.shuffleSeed, "shuffle-seed", 0, "shuffle question order with this seed, 0 keeps file order (env: QUIZ_SHUFFLE_SEED)")
	return cmd
}

// apply lets explicitly set flags win over the config file, which wins over
// flag defaults.
func (o *startOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("port") || cfg.Server.Port == "" {
		cfg.Server.Port = o.port
	}
	if fs.Changed("tcp-port") || cfg.Server.TCPPort == "" {
		cfg.Server.TCPPort = o.tcpPort
	}
	if fs.Changed("questions") || cfg.Quiz.Questions == "" {
		cfg.Quiz.Questions = o.questions
	}
	if fs.Changed("timer") {
		cfg.Quiz.TimerMode = o.timer
	}
	if fs.Changed("time-limit") || cfg.Quiz.TimeLimit == 0 {
		cfg.Quiz.TimeLimit = o.timeLimit
	}
	if fs.Changed("shuffle-seed") {
		cfg.Quiz.ShuffleSeed = o.shuffleSeed
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	bus := event.NewBus()
	defer bus.Stop()

	session := app.NewSession(app.Config{
		Publisher:  bus,
		SendBuffer: cfg.Server.SendBuffer,
		TimerMode:  cfg.Quiz.TimerMode,
		TimeLimit:  cfg.Quiz.TimeLimit,
	})
	telemetry.NewMetrics(prometheus.DefaultRegisterer).Register(bus)

	timer := schedule.NewQuestionTimer(session, time.Second)
	timer.Register(bus)
	defer timer.Stop()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		telemetry.MonitorRedis(redisClient)

		redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		redisstore.NewScoreMirror(redisClient, redisTTL, cfg.Redis.Prefix).Register(bus)
	}

	source := questionSource{
		files: importer.New(importer.FileImageLoader{Dir: cfg.Quiz.ImageDir}),
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		loader := pgstore.NewQuestionLoader(pool)
		quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
		if redisClient != nil {
			source.database = redisstore.NewQuestionRepository(redisClient, loader, quizTTL, cfg.Redis.Prefix)
		} else {
			source.database = memory.NewQuestionRepository(loader, quizTTL)
		}
	}

	var questions app.QuestionRepository = source
	if cfg.Quiz.ShuffleSeed != 0 {
		questions = shuffledQuestions{next: questions, seed: cfg.Quiz.ShuffleSeed}
	}

	service := app.NewQuizService(session, questions)
	if cfg.Quiz.Questions != "" {
		if _, err := service.LoadQuestions(ctx, cfg.Quiz.Questions); err != nil {
			return err
		}
	}

	writeTimeout := config.TTLDuration(cfg.Server.WriteTimeout, 5*time.Second)
	router := transport.NewRouter(service, transport.Options{
		WriteTimeout: writeTimeout,
		PublicURL:    cfg.Server.PublicURL,
	})
	httpServer := transport.NewServer(net.JoinHostPort("", cfg.Server.Port), router)
	tcpServer := tcp.NewServer(session, tcp.Options{WriteTimeout: writeTimeout})

	slog.InfoContext(ctx, "server: starting", "session", session.ID(), "http_port", cfg.Server.Port, "tcp_port", cfg.Server.TCPPort)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return tcpServer.ListenAndServe(ctx, net.JoinHostPort("", cfg.Server.TCPPort))
	})
	eg.Go(func() error {
		return httpServer.Run(ctx)
	})

	err := eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
		return err
	}
	slog.InfoContext(ctx, "server: shutdown completed")
	return nil
}
