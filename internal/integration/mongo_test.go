package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trivia-service/internal/domain"
	mongostore "trivia-service/internal/infra/mongo"
)

func TestMongoResultStore(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	uri, cleanup := startMongo(t, ctx)
	defer cleanup()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer func() { _ = client.Disconnect(ctx) }()

	store := mongostore.NewResultStore(client.Database("trivia_test"))
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	low := domain.Result{ID: "r1", UserID: "u1", QuestionIDs: []string{"q1"}, SelectedAnswers: []int{0}, Score: 100, TotalQuestions: 1, CorrectAnswers: 1, PlayedAt: base}
	high := domain.Result{ID: "r2", UserID: "u2", QuestionIDs: []string{"q1", "q2"}, SelectedAnswers: []int{0, 1}, Score: 200, TotalQuestions: 2, CorrectAnswers: 2, PlayedAt: base.Add(time.Hour)}

	for _, r := range []domain.Result{low, high, low} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected duplicate save to be ignored, got %d results", len(all))
	}
	if all[0].ID != "r2" || all[1].ID != "r1" {
		t.Fatalf("expected best first, got %s then %s", all[0].ID, all[1].ID)
	}
	if !all[0].PlayedAt.Equal(high.PlayedAt) || all[0].CorrectAnswers != 2 {
		t.Fatalf("unexpected decoded result %+v", all[0])
	}
}

func startMongo(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start mongo: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("mongo host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatalf("mongo port: %v", err)
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}
