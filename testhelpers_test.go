//go:build integration

package main_test

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geo"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/looptrail/service-planner/internal/application"
	routeDomain "github.com/looptrail/service-planner/internal/domain/route"
	"github.com/looptrail/service-planner/internal/events"
	"github.com/looptrail/service-planner/internal/repository"
	"github.com/looptrail/service-planner/internal/routing"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// plannerStack holds wired-up planner service components.
type plannerStack struct {
	Service *application.PlannerService
	Cleanup func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_planner",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_planner sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.RouteModel{}))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicRouteEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// startRoutingStub runs an OSRM-compatible HTTP server that routes every
// request along the requested waypoints at roughly the crow-flies distance
// scaled up for street detours.
func startRoutingStub(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		coordPart := parts[len(parts)-1]

		var coords []string
		var line []routeDomain.GeoPoint
		for _, pair := range strings.Split(coordPart, ";") {
			var lng, lat float64
			if _, err := fmt.Sscanf(pair, "%f,%f", &lng, &lat); err != nil {
				http.Error(w, "bad coordinates", http.StatusBadRequest)
				return
			}
			coords = append(coords, fmt.Sprintf("[%f, %f]", lng, lat))
			line = append(line, routeDomain.GeoPoint{Latitude: lat, Longitude: lng})
		}
		if len(line) < 2 {
			http.Error(w, "need at least two waypoints", http.StatusBadRequest)
			return
		}

		var distanceM float64
		for i := 1; i < len(line); i++ {
			distanceM += geo.DistanceHaversine(line[i-1].Orb(), line[i].Orb())
		}
		distanceM *= 1.25 // street detour factor

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"code": "Ok",
			"routes": [{
				"geometry": {"type": "LineString", "coordinates": [%s]},
				"distance": %f,
				"duration": %f,
				"legs": [{
					"steps": [
						{"name": "", "distance": %f, "duration": 0, "maneuver": {"type": "depart", "modifier": "north"}},
						{"name": "", "distance": 0, "duration": 0, "maneuver": {"type": "arrive"}}
					]
				}]
			}]
		}`, strings.Join(coords, ", "), distanceM, distanceM/1.4, distanceM)
	}))
}

// setupPlannerStack wires up the full planner service stack against the
// given database, brokers and routing stub.
func setupPlannerStack(t *testing.T, db *gorm.DB, brokers []string, routingURL string) *plannerStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	repo := repository.NewGormRouteRepository(db)
	osrm := routing.NewOSRMClient(routingURL, "foot", 10*time.Second, logger)
	optimizer := routeDomain.NewOptimizer(osrm, routeDomain.DefaultSearchConfig(), rand.New(rand.NewSource(42)), logger)
	producer := events.NewProducer(brokers, logger)
	svc := application.NewPlannerService(repo, optimizer, producer, logger, 12.0)

	return &plannerStack{
		Service: svc,
		Cleanup: func() { _ = producer.Close() },
	}
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) events.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := events.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
