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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"quiz-engine/internal/app"
	"quiz-engine/internal/domain"
	"quiz-engine/internal/infra/postgres"
	pgmigrations "quiz-engine/internal/infra/postgres/migrations"
	infraredis "quiz-engine/internal/infra/redis"
)

type stack struct {
	service *app.QuizService
	redis   *goredis.Client
	archive *postgres.QuestionArchive
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err, "connect pg")
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err, "redis client")
	t.Cleanup(func() { _ = redisClient.Close() })

	archive := postgres.NewQuestionArchive(pool)
	service := app.NewQuizService(
		infraredis.NewStore(redisClient),
		app.DefaultSettings(),
		app.WithArchive(archive),
	)
	return &stack{service: service, redis: redisClient, archive: archive}
}

func TestSubmitAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	result, err := s.service.CreateQuestion(ctx, domain.Question{
		QuizID: "quiz-1", QuestionID: "q1", Text: "What is 2 + 2?", CorrectAnswer: "4",
	})
	require.NoError(t, err)
	require.Equal(t, domain.Created, result)

	for _, user := range []string{"alice", "bob"} {
		_, err := s.service.StartQuestion(ctx, user, "quiz-1", "q1")
		require.NoError(t, err, "start %s", user)
	}

	receipt, err := s.service.SubmitAnswer(ctx, "alice", "quiz-1", "q1", "4")
	require.NoError(t, err)
	assert.True(t, receipt.Correct)

	receipt, err = s.service.SubmitAnswer(ctx, "bob", "quiz-1", "q1", "5")
	require.NoError(t, err)
	assert.False(t, receipt.Correct)

	_, err = s.service.SubmitAnswer(ctx, "bob", "quiz-1", "q1", "4")
	assert.ErrorIs(t, err, domain.ErrDuplicateAnswer)

	snapshot, err := s.service.Rankings(ctx, "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"4": 1, "5": 1}, snapshot.VotesByQuestion["q1"])
	require.Len(t, snapshot.Correct, 2)
	assert.Equal(t, "alice", snapshot.Correct[1].UserID, "correct board is ascending")
	assert.Equal(t, 1.0, snapshot.Correct[1].Score)
}

func TestArchiveSurvivesStoreLoss(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	_, err := s.service.CreateQuestion(ctx, domain.Question{
		QuizID: "quiz-2", QuestionID: "q1", Text: "Capital of France?", CorrectAnswer: "Paris",
	})
	require.NoError(t, err)

	require.NoError(t, s.redis.FlushAll(ctx).Err())

	result, err := s.service.CreateQuestion(ctx, domain.Question{
		QuizID: "quiz-2", QuestionID: "q1", Text: "Capital of Spain?", CorrectAnswer: "Madrid",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AlreadyExists, result)

	q, err := s.service.GetQuestion(ctx, "quiz-2", "q1")
	require.NoError(t, err)
	assert.Equal(t, "Paris", q.CorrectAnswer)

	fields, err := s.redis.HGetAll(ctx, "quiz:quiz-2:question:q1").Result()
	require.NoError(t, err)
	assert.Equal(t, "Paris", fields["correct_answer"], "store re-warmed from archive")

	_, err = s.archive.LoadQuestion(ctx, "quiz-2", "missing")
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
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
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
