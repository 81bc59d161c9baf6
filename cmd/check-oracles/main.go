package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smartstore/engine/internal/logging"
	"github.com/smartstore/engine/internal/recognition"
)

func main() {
	logging.Init(logging.Config{Level: "warn", Format: "console"})

	faceURL := os.Getenv("FACE_ORACLE_URL")
	if faceURL == "" {
		faceURL = "http://localhost:8000/identify"
	}
	productURL := os.Getenv("PRODUCT_ORACLE_URL")
	if productURL == "" {
		productURL = "http://localhost:8080/identify_product"
	}

	fmt.Println("🔍 Checking Recognition Oracles")
	fmt.Println("================================")

	gateway := recognition.NewHTTPGateway(recognition.Config{
		FaceURL:    faceURL,
		ProductURL: productURL,
		Timeout:    2 * time.Second,
	})

	ctx := context.Background()
	probe := []byte("probe")

	if identity, ok := gateway.IdentifyFace(ctx, probe); ok {
		fmt.Printf("✅ Face oracle reachable at %s (probe resolved to %s)\n", faceURL, identity)
	} else {
		fmt.Printf("⚠️  Face oracle at %s returned no result (unreachable, or probe unrecognized)\n", faceURL)
	}

	if candidate, confidence, ok := gateway.IdentifyProduct(ctx, probe); ok {
		fmt.Printf("✅ Product oracle reachable at %s (probe resolved to %s, confidence %.2f)\n", productURL, candidate, confidence)
	} else {
		fmt.Printf("⚠️  Product oracle at %s returned no result (unreachable, or probe unrecognized)\n", productURL)
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./smartstore.db"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	fmt.Println()
	fmt.Println("📦 Store Database")
	fmt.Println("================================")

	for _, table := range []string{"clients", "products", "transactions", "activity_logs"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			fmt.Printf("❌ No %s table found\n", table)
			continue
		}
		fmt.Printf("   %-15s %d rows\n", table, count)
	}
}
