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
	"go.uber.org/zap/zaptest"

	"quiz-assessment-service/internal/app"
	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/grading"
	pgstore "quiz-assessment-service/internal/infra/postgres"
	pgmigrations "quiz-assessment-service/internal/infra/postgres/migrations"
	infraredis "quiz-assessment-service/internal/infra/redis"
	"quiz-assessment-service/internal/leaderboard"
	"quiz-assessment-service/internal/tutor"
)

type stack struct {
	service *app.AssessmentService
	quizzes *pgstore.QuizStore
}

func newStack(t *testing.T, ctx context.Context) stack {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	quizzes := pgstore.NewQuizStore(pool)
	for _, quiz := range []domain.Quiz{sampleQuiz(), adaptiveQuiz()} {
		if err := quizzes.SaveQuiz(ctx, quiz); err != nil {
			t.Fatalf("seed %s: %v", quiz.ID, err)
		}
	}

	logger := zaptest.NewLogger(t)
	offline := tutor.NewOffline()
	service := app.NewAssessmentService(app.Dependencies{
		Quizzes:     infraredis.NewQuizRepository(redisClient, quizzes, 5*time.Minute),
		Catalog:     quizzes,
		Submissions: pgstore.NewSubmissionStore(pool),
		Hints:       infraredis.NewHintCounter(redisClient, time.Hour),
		Hinter:      offline,
		Engine:      grading.NewEngine(offline, offline, grading.DefaultPolicy(), grading.WithLogger(logger)),
		Leaderboard: leaderboard.NewAggregator(
			pgstore.NewLeaderboardStore(pool),
			infraredis.NewCache(redisClient),
			leaderboard.WithLogger(logger),
		),
	}, app.WithLogger(logger), app.WithHintLimit(2))
	return stack{service: service, quizzes: quizzes}
}

func TestSubmitQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	if _, err := s.service.SubmitQuiz(ctx, app.SubmitRequest{
		UserID: "u1", DisplayName: "Alice", QuizID: "quiz-1",
		Answers: []app.AnswerInput{
			{QuestionID: "q1", SelectedOption: "3"},
			{QuestionID: "q2", SelectedOption: "true"},
		},
	}); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	bob, err := s.service.SubmitQuiz(ctx, app.SubmitRequest{
		UserID: "u2", DisplayName: "Bob", QuizID: "quiz-1",
		Answers: []app.AnswerInput{
			{QuestionID: "q1", SelectedOption: "4"},
			{QuestionID: "q2", SelectedOption: "true"},
		},
	})
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if bob.Percentage != 100 || len(bob.Suggestions) == 0 {
		t.Fatalf("unexpected bob evaluation %+v", bob)
	}

	lb, err := s.service.GetLeaderboard(ctx, leaderboard.Query{Subject: "math", GradeLevel: "5"})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" {
		t.Fatalf("expected bob leading, got %+v", lb.Entries)
	}

	history, err := s.service.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Percentage != 50 {
		t.Fatalf("unexpected history %+v", history)
	}

	if err := s.service.DeleteQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if _, err := s.quizzes.LoadQuiz(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected deleted quiz to be gone, got %v", err)
	}
	if _, err := s.service.GetUserRank(ctx, "u2", "math", "5"); err != nil {
		t.Fatalf("expected ranking to survive delete: %v", err)
	}
}

func TestAdaptiveAndHintsEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	first, err := s.service.NextQuestion(ctx, "u1", "Alice", "quiz-a")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	again, err := s.service.NextQuestion(ctx, "u1", "Alice", "quiz-a")
	if err != nil {
		t.Fatalf("next again: %v", err)
	}
	if first.SubmissionID != again.SubmissionID || first.Question == nil {
		t.Fatalf("expected one open submission, got %+v and %+v", first, again)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.service.RequestHint(ctx, "u1", "quiz-a", first.Question.ID); err != nil {
			t.Fatalf("hint %d: %v", i+1, err)
		}
	}
	if _, err := s.service.RequestHint(ctx, "u1", "quiz-a", first.Question.ID); !errors.Is(err, domain.ErrHintLimitReached) {
		t.Fatalf("expected hint limit, got %v", err)
	}

	res, err := s.service.AnswerAdaptive(ctx, "u1", "quiz-a", app.AnswerInput{QuestionID: first.Question.ID, SelectedOption: "true"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Answer.HintsUsed != 2 || res.Answer.PointsEarned != 0.8 {
		t.Fatalf("expected hint penalty applied, got %+v", res.Answer)
	}
	if _, err := s.service.RequestHint(ctx, "u1", "quiz-a", first.Question.ID); !errors.Is(err, domain.ErrQuestionAnswered) {
		t.Fatalf("expected answered question to refuse hints, got %v", err)
	}

	eval, err := s.service.FinishAdaptive(ctx, "u1", "quiz-a")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if eval.AnsweredQuestions != 1 {
		t.Fatalf("unexpected evaluation %+v", eval)
	}
	rank, err := s.service.GetUserRank(ctx, "u1", "science", "7")
	if err != nil || rank.Rank != 1 {
		t.Fatalf("expected alice ranked first, got %+v %v", rank, err)
	}
	if _, err := s.service.RequestHint(ctx, "u1", "quiz-a", first.Question.ID); err != nil {
		t.Fatalf("expected hint counter cleared for the next attempt: %v", err)
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

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
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

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-1",
		Title:      "Arithmetic",
		Subject:    "math",
		GradeLevel: "5",
		Questions: []domain.Question{
			{
				ID: "q1", QuizID: "quiz-1", Text: "What is 2 + 2?",
				Type: domain.QuestionMultipleChoice, Difficulty: domain.DifficultyEasy, Topic: "addition",
				Order: 1, Points: 1, Options: []string{"3", "4", "5"}, CorrectAnswer: "4",
			},
			{
				ID: "q2", QuizID: "quiz-1", Text: "Zero is an even number.",
				Type: domain.QuestionTrueFalse, Difficulty: domain.DifficultyMedium, Topic: "parity",
				Order: 2, Points: 1, CorrectAnswer: "true",
			},
		},
	}
}

func adaptiveQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-a",
		Title:      "Cells",
		Subject:    "science",
		GradeLevel: "7",
		Adaptive:   true,
		Questions: []domain.Question{
			{
				ID: "a1", QuizID: "quiz-a", Text: "Plant cells have a cell wall.",
				Type: domain.QuestionTrueFalse, Difficulty: domain.DifficultyEasy, Topic: "cells",
				Order: 1, Points: 1, CorrectAnswer: "true",
			},
			{
				ID: "a2", QuizID: "quiz-a", Text: "Bacteria have a nucleus.",
				Type: domain.QuestionTrueFalse, Difficulty: domain.DifficultyMedium, Topic: "organisms",
				Order: 2, Points: 1, CorrectAnswer: "false",
			},
		},
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
