package integration

import (
	"context"
	"database/sql"
	"errors"
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

	"quizmusic-service/internal/app"
	"quizmusic-service/internal/domain"
	"quizmusic-service/internal/fixtures"
	"quizmusic-service/internal/infra/postgres"
	pgmigrations "quizmusic-service/internal/infra/postgres/migrations"
	infraredis "quizmusic-service/internal/infra/redis"
	"quizmusic-service/internal/leveling"
)

func TestQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL)

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

	loader := postgres.NewCatalog(pool)
	scores := postgres.NewScoreStore(pool)

	// An image question without media is never counted or drawn.
	before := questionCount(t, ctx, loader, "rock")
	var malformedID int64
	err = pool.QueryRow(ctx, `
		INSERT INTO questions (theme_id, prompt, choice_a, choice_b, choice_c, choice_d, correct_index, variant, media_url)
		SELECT id, 'Which album cover is this?', 'a', 'b', 'c', 'd', 0, 'image', '' FROM themes WHERE code = 'rock'
		RETURNING id`).Scan(&malformedID)
	if err != nil {
		t.Fatalf("insert malformed question: %v", err)
	}
	if after := questionCount(t, ctx, loader, "rock"); after != before {
		t.Fatalf("malformed question counted: %d before, %d after", before, after)
	}
	catalog := infraredis.NewCatalogCache(redisClient, loader, 5*time.Minute, nil)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewQuizService(sessions, catalog, scores, leveling.MustDefault(), nil, 5)

	themes, err := service.ListThemes(ctx)
	if err != nil {
		t.Fatalf("list themes: %v", err)
	}
	if len(themes) != 5 {
		t.Fatalf("expected 5 active themes, got %d", len(themes))
	}

	if _, err := service.StartQuiz(ctx, "jazz"); !errors.Is(err, domain.ErrThemeNotFound) {
		t.Fatalf("inactive theme: expected not found, got %v", err)
	}

	session, err := service.StartQuiz(ctx, "rock")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Total() != 5 {
		t.Fatalf("expected 5 drawn questions, got %d", session.Total())
	}
	for i := 0; i < 20; i++ {
		drawn, err := service.StartQuiz(ctx, "rock")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		for _, q := range drawn.Questions() {
			if q.ID == malformedID {
				t.Fatalf("malformed question %d was drawn", malformedID)
			}
		}
		if drawn.Total() != 5 {
			t.Fatalf("expected 5 drawn questions, got %d", drawn.Total())
		}
		service.Abandon(ctx, drawn.ID())
	}

	answers := make(map[int]int, session.Total())
	for i, q := range session.Questions() {
		answers[i] = q.CorrectIndex
	}
	answers[0] = (answers[0] + 1) % domain.ChoiceCount
	elapsed := 61

	result, err := service.Submit(ctx, session.ID(), app.Submission{UserID: "u1", Answers: answers, ElapsedSeconds: &elapsed})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score.RawScore != 4 || result.Classification.Percentage != 80 {
		t.Fatalf("expected 4/5 = 80%%, got %+v", result.Classification)
	}

	if _, err := service.Submit(ctx, session.ID(), app.Submission{UserID: "u1", Answers: answers}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("resubmit: expected invalid state, got %v", err)
	}

	report, err := service.History(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if report.GamesPlayed != 1 || report.BestPercentage != 80 || report.Entries[0].ThemeTitle != "Classic Rock" {
		t.Fatalf("unexpected history %+v", report)
	}
	if got := report.Entries[0].ElapsedSeconds; got == nil || *got != 61 {
		t.Fatalf("expected elapsed seconds persisted, got %v", got)
	}
}

func questionCount(t *testing.T, ctx context.Context, loader *postgres.Catalog, code string) int {
	t.Helper()
	themes, err := loader.ListThemes(ctx)
	if err != nil {
		t.Fatalf("list themes: %v", err)
	}
	for _, th := range themes {
		if th.Code == code {
			return th.QuestionCount
		}
	}
	t.Fatalf("theme %s not listed", code)
	return 0
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

func seedCatalog(t *testing.T, ctx context.Context, dsn string) {
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

	bundled, err := fixtures.Bundled()
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	seeder := postgres.NewSeeder(db)
	// Seeding twice must not duplicate questions.
	for i := 0; i < 2; i++ {
		if _, err := seeder.Seed(ctx, bundled); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	var questions int
	if err := db.NewSelect().Table("questions").ColumnExpr("count(*)").Scan(ctx, &questions); err != nil {
		t.Fatalf("count questions: %v", err)
	}
	if questions != 27 {
		t.Fatalf("expected 27 seeded questions, got %d", questions)
	}
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
