package main

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartstore/engine/internal/api"
	"github.com/smartstore/engine/internal/checkout"
	"github.com/smartstore/engine/internal/database"
	"github.com/smartstore/engine/internal/debounce"
	"github.com/smartstore/engine/internal/dispatch"
	"github.com/smartstore/engine/internal/events"
	"github.com/smartstore/engine/internal/invoice"
	"github.com/smartstore/engine/internal/logging"
	"github.com/smartstore/engine/internal/recognition"
	"github.com/smartstore/engine/internal/session"
)

func main() {
	logging.Init(logging.Config{
		Level:  envOrDefault("LOG_LEVEL", "info"),
		Format: envOrDefault("LOG_FORMAT", "console"),
	})

	port := envOrDefault("PORT", "8090")

	// Database configuration
	dbType := envOrDefault("DB_TYPE", "sqlite")

	var dbConfig database.Config
	dbConfig.Type = dbType

	if dbType == "postgres" {
		dbConfig.Host = envOrDefault("DB_HOST", "localhost")
		dbConfig.Port = envInt("DB_PORT", 5432)
		dbConfig.User = envOrDefault("DB_USER", "smartstore")
		dbConfig.Password = envOrDefault("DB_PASSWORD", "smartstore_dev")
		dbConfig.Name = envOrDefault("DB_NAME", "smartstore")
	} else {
		dbConfig.SQLitePath = envOrDefault("DB_PATH", "./smartstore.db")
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	clientRepo := database.NewClientRepo(db)
	productRepo := database.NewProductRepo(db)
	txStore := database.NewTransactionStore(db)

	gateway := recognition.NewHTTPGateway(recognition.Config{
		FaceURL:    envOrDefault("FACE_ORACLE_URL", "http://localhost:8000/identify"),
		ProductURL: envOrDefault("PRODUCT_ORACLE_URL", "http://localhost:8080/identify_product"),
		Timeout:    envDuration("ORACLE_TIMEOUT_MS", 2000),
	})

	tracker := debounce.NewTracker(debounce.Config{
		RequiredStreak:  envInt("REQUIRED_STREAK", 15),
		MinConfidence:   envFloat("MIN_CONFIDENCE", 0.2),
		StalenessWindow: envDuration("STALENESS_WINDOW_MS", 2000),
		Cooldown:        envDuration("COOLDOWN_MS", 5000),
		AbsenceTimeout:  envDuration("ABSENCE_TIMEOUT_MS", 30000),
	})

	absenceTimeout := envDuration("ABSENCE_TIMEOUT_MS", 30000)
	sessions := session.NewStore(absenceTimeout)

	invoiceGen, err := invoice.NewGenerator(envOrDefault("INVOICE_DIR", "./invoices"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize invoice generator")
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	publisher := events.New(events.Config{
		Brokers:           brokers,
		TopicDetections:   envOrDefault("KAFKA_TOPIC_DETECTIONS", "smartstore.detections"),
		TopicTransactions: envOrDefault("KAFKA_TOPIC_TRANSACTIONS", "smartstore.transactions"),
	})
	defer publisher.Close()

	coordinator := checkout.NewCoordinator(checkout.Config{
		Sessions:      sessions,
		Store:         txStore,
		Resolver:      clientRepo,
		Renderer:      invoiceGen,
		Events:        publisher,
		BiometricWait: envDuration("BIOMETRIC_WAIT_MS", 30000),
	})

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Gateway:  gateway,
		Tracker:  tracker,
		Sessions: sessions,
		Catalog:  productRepo,
		Events:   publisher,
	})

	handlers := api.NewHandlers(sessions, coordinator, dispatcher)
	router := api.NewRouter(handlers)

	log.Info().
		Str("port", port).
		Str("dbType", dbType).
		Msg("smart store engine starting")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Fatal().Str("key", key).Str("value", v).Msg("invalid integer env var")
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Fatal().Str("key", key).Str("value", v).Msg("invalid float env var")
	}
	return def
}

func envDuration(key string, defMillis int) time.Duration {
	return time.Duration(envInt(key, defMillis)) * time.Millisecond
}
