package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/event"
	pgstore "live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	infraredis "live-quiz-service/internal/infra/redis"
)

type nopTransport struct{}

func (nopTransport) WriteMessage([]byte) error { return nil }
func (nopTransport) Close() error              { return nil }

func TestQuizRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestionSet(t, ctx, pgURL, sampleQuestionSet(t))

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	bus := event.NewBus()
	session := app.NewSession(app.Config{Publisher: bus})
	infraredis.NewScoreMirror(redisClient, 5*time.Minute, "it").Register(bus)

	questions := infraredis.NewQuestionRepository(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute, "it")
	service := app.NewQuizService(session, questions)

	if _, err := service.LoadQuestions(ctx, "geo-1"); err != nil {
		t.Fatalf("load questions: %v", err)
	}
	for _, name := range []string{"Alice", "Bob"} {
		if _, err := session.Join(ctx, name, nopTransport{}); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}

	if err := session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.SubmitAnswer(ctx, "Alice", domain.Answer{Kind: domain.KindMultipleChoice, Choice: 2}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := session.SubmitAnswer(ctx, "Bob", domain.Answer{Kind: domain.KindMultipleChoice, Choice: 0}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := session.State(); got != domain.StateAllAnswered {
		t.Fatalf("expected all answered, got %s", got)
	}
	bus.Stop()

	key := fmt.Sprintf("it:session:%s:scores", session.ID())
	scores, err := redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		t.Fatalf("read mirrored scores: %v", err)
	}
	if scores["Alice"] != "1" || scores["Bob"] != "0" {
		t.Fatalf("expected Alice=1 Bob=0, got %v", scores)
	}

	cached, err := redisClient.Exists(ctx, "it:questions:geo-1").Result()
	if err != nil || cached != 1 {
		t.Fatalf("expected question set to be cached, got %d (%v)", cached, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestionSet(t *testing.T, ctx context.Context, dsn string, set domain.QuestionSet) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := pgstore.NewStore(db).Save(ctx, "Geography", set); err != nil {
		t.Fatalf("save question set: %v", err)
	}
}

func sampleQuestionSet(t *testing.T) domain.QuestionSet {
	t.Helper()
	q, err := domain.NewMultipleChoice("Capital of Italy?", [4]string{"Paris", "Madrid", "Rome", "Berlin"}, 2, "")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	return domain.NewQuestionSet("geo-1", []domain.Question{q})
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
