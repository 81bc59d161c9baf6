// Command simulate drives the whole engine pipeline offline: a scripted
// gateway stands in for the recognition servers and a scripted reading for
// the fingerprint sensor, against a throwaway in-memory store. Useful for
// demoing the debounce and checkout flow without cameras or oracles.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/smartstore/engine/internal/checkout"
	"github.com/smartstore/engine/internal/database"
	"github.com/smartstore/engine/internal/debounce"
	"github.com/smartstore/engine/internal/dispatch"
	"github.com/smartstore/engine/internal/invoice"
	"github.com/smartstore/engine/internal/logging"
	"github.com/smartstore/engine/internal/models"
	"github.com/smartstore/engine/internal/session"
)

// scriptedGateway resolves regions by their payload instead of calling an
// oracle: "face:<identity>" and "product:<visual-id>".
type scriptedGateway struct{}

func (scriptedGateway) IdentifyFace(ctx context.Context, region []byte) (string, bool) {
	s := string(region)
	if strings.HasPrefix(s, "face:") {
		return strings.TrimPrefix(s, "face:"), true
	}
	return "", false
}

func (scriptedGateway) IdentifyProduct(ctx context.Context, region []byte) (string, float64, bool) {
	s := string(region)
	if strings.HasPrefix(s, "product:") {
		return strings.TrimPrefix(s, "product:"), 0.92, true
	}
	return "", 0, false
}

func main() {
	logging.Init(logging.Config{Level: "info", Format: "console"})

	db, err := database.NewDB(database.Config{Type: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	ctx := context.Background()

	clientRepo := database.NewClientRepo(db)
	productRepo := database.NewProductRepo(db)
	txStore := database.NewTransactionStore(db)

	alice := models.NewClient("Alice Martin", "face-alice", "FP-001")
	if err := clientRepo.Insert(ctx, alice); err != nil {
		log.Fatal("Failed to seed client:", err)
	}

	cola := models.NewProduct("Cola 33cl", 2.50, "cola-v1")
	if err := productRepo.Insert(ctx, cola); err != nil {
		log.Fatal("Failed to seed product:", err)
	}

	invoiceDir, err := os.MkdirTemp("", "smartstore-invoices")
	if err != nil {
		log.Fatal("Failed to create invoice dir:", err)
	}
	invoiceGen, err := invoice.NewGenerator(invoiceDir)
	if err != nil {
		log.Fatal("Failed to initialize invoice generator:", err)
	}

	const streak = 5

	tracker := debounce.NewTracker(debounce.Config{
		RequiredStreak:  streak,
		MinConfidence:   0.2,
		StalenessWindow: 2 * time.Second,
		Cooldown:        5 * time.Second,
		AbsenceTimeout:  30 * time.Second,
	})
	sessions := session.NewStore(30 * time.Second)

	coordinator := checkout.NewCoordinator(checkout.Config{
		Sessions:      sessions,
		Store:         txStore,
		Resolver:      clientRepo,
		Renderer:      invoiceGen,
		BiometricWait: 5 * time.Second,
	})

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Gateway:  scriptedGateway{},
		Tracker:  tracker,
		Sessions: sessions,
		Catalog:  productRepo,
	})

	fmt.Println("🛒 Smart Store Simulation")
	fmt.Println("================================")

	frame := dispatch.Frame{
		Regions: []dispatch.Region{
			{Kind: dispatch.FaceRegion, Image: []byte("face:" + alice.ID)},
			{Kind: dispatch.ProductRegion, Image: []byte("product:cola-v1")},
		},
	}

	for i := 0; i < streak+2; i++ {
		frame.CapturedAt = time.Now()
		dispatcher.ProcessFrame(ctx, frame)
	}

	s, _ := sessions.Get(alice.ID)
	fmt.Printf("After %d frames: %d item(s), total %.2f EUR\n", streak+2, s.ItemCount(), s.Total())

	token, err := coordinator.RequestCheckout(alice.ID)
	if err != nil {
		log.Fatal("Checkout request failed:", err)
	}
	fmt.Printf("Checkout requested, verification token %s\n", token)

	go func() {
		time.Sleep(200 * time.Millisecond)
		if err := coordinator.SubmitReading(checkout.Reading{Token: token, FingerprintID: "FP-001"}); err != nil {
			log.Println("Failed to submit reading:", err)
		}
	}()

	if err := coordinator.CompleteCheckout(ctx, alice.ID, token); err != nil {
		log.Fatal("Checkout failed:", err)
	}

	fmt.Println("✅ Transaction committed")
	fmt.Printf("   Invoices written under %s\n", invoiceDir)

	stats := dispatcher.Stats()
	fmt.Printf("   Frames processed: %d, stable events: %d, active sessions: %d\n",
		stats.FramesProcessed, stats.StableEvents, stats.ActiveSessions)
}
