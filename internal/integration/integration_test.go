//go:build integration
// +build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	httpapi "github.com/tixswap/tixswap/internal/api/http"
	"github.com/tixswap/tixswap/internal/application/availability"
	"github.com/tixswap/tixswap/internal/application/dispatch"
	"github.com/tixswap/tixswap/internal/application/negotiation"
	"github.com/tixswap/tixswap/internal/application/notification"
	"github.com/tixswap/tixswap/internal/application/purchase"
	"github.com/tixswap/tixswap/internal/domain/listing"
	"github.com/tixswap/tixswap/internal/infrastructure/postgres"
	"github.com/tixswap/tixswap/internal/infrastructure/sse"
)

const jwtSecret = "integration-secret"

type testServer struct {
	*httptest.Server
	pool *pgxpool.Pool
}

func TestConcurrentDirectPurchaseIntegration(t *testing.T) {
	server, cleanup := newTestServer(t)
	defer cleanup()

	seller := uuid.New()
	l := seedListing(t, server.pool, seller)

	const buyers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		codes   = map[int]int{}
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := doJSON(t, http.MethodPost, server.URL+"/v1/listings/"+l.ID.String()+"/purchases", uuid.New(), map[string]int{"quantity": 1})
			mu.Lock()
			defer mu.Unlock()
			codes[status]++
			if status == http.StatusCreated {
				created++
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected exactly one purchase, got %d (%v)", created, codes)
	}
	if codes[http.StatusConflict] != buyers-1 {
		t.Fatalf("expected %d conflicts, got %v", buyers-1, codes)
	}

	var active int
	err := server.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM purchases WHERE listing_id = $1 AND status IN ('PENDING_PAYMENT','PROCESSING','COMPLETED')`, l.ID).Scan(&active)
	if err != nil {
		t.Fatalf("count purchases: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected one active purchase row, got %d", active)
	}
}

func TestPurchaseLifecycleIntegration(t *testing.T) {
	server, cleanup := newTestServer(t)
	defer cleanup()

	seller, buyer := uuid.New(), uuid.New()
	l := seedListing(t, server.pool, seller)

	status, created := doJSON(t, http.MethodPost, server.URL+"/v1/listings/"+l.ID.String()+"/purchases", buyer, map[string]int{"quantity": 1})
	if status != http.StatusCreated {
		t.Fatalf("create purchase status %d: %v", status, created)
	}
	path := server.URL + "/v1/purchases/" + created["id"].(string)

	status, body := doJSON(t, http.MethodPost, path+"/transitions", buyer, map[string]string{"status": "PROCESSING"})
	if status != http.StatusConflict || body["error"] != "INVALID_TRANSITION" {
		t.Fatalf("expected invalid transition, got %d %v", status, body)
	}

	steps := []struct {
		actor  uuid.UUID
		status string
	}{
		{seller, "PROCESSING"},
		{seller, "COMPLETED"},
		{buyer, "CONFIRMED"},
	}
	for _, step := range steps {
		status, body = doJSON(t, http.MethodPost, path+"/transitions", step.actor, map[string]string{"status": step.status})
		if status != http.StatusOK {
			t.Fatalf("transition to %s status %d: %v", step.status, status, body)
		}
	}

	status, body = doJSON(t, http.MethodGet, path+"/history", seller, nil)
	if status != http.StatusOK {
		t.Fatalf("history status %d: %v", status, body)
	}
	if got := len(body["transitions"].([]interface{})); got != 4 {
		t.Fatalf("expected 4 history records, got %d", got)
	}

	var listingStatus string
	if err := server.pool.QueryRow(context.Background(), `SELECT status FROM listings WHERE id = $1`, l.ID).Scan(&listingStatus); err != nil {
		t.Fatalf("read listing: %v", err)
	}
	if listingStatus != string(listing.StatusSold) {
		t.Fatalf("expected listing SOLD, got %s", listingStatus)
	}
}

func TestExclusiveAcceptanceIntegration(t *testing.T) {
	server, cleanup := newTestServer(t)
	defer cleanup()

	requester := uuid.New()
	status, offerBody := doJSON(t, http.MethodPost, server.URL+"/v1/offers", requester, map[string]interface{}{
		"eventName": "Cup Final",
		"quantity":  1,
		"maxPrice":  "400",
	})
	if status != http.StatusCreated {
		t.Fatalf("create offer status %d: %v", status, offerBody)
	}
	offerURL := server.URL + "/v1/offers/" + offerBody["id"].(string)

	var proposals []string
	for i := 0; i < 4; i++ {
		status, body := doJSON(t, http.MethodPost, offerURL+"/proposals", uuid.New(), map[string]string{
			"price":       decimal.NewFromInt(int64(300 + i)).String(),
			"sectionInfo": "block " + decimal.NewFromInt(int64(i)).String(),
		})
		if status != http.StatusCreated {
			t.Fatalf("submit proposal status %d: %v", status, body)
		}
		proposals = append(proposals, body["id"].(string))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, id := range proposals {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			status, _ := doJSON(t, http.MethodPost, offerURL+"/proposals/"+id+"/accept", requester, nil)
			if status == http.StatusCreated {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one acceptance, got %d", accepted)
	}

	var acceptedRows, purchases int
	ctx := context.Background()
	if err := server.pool.QueryRow(ctx, `SELECT count(*) FROM proposals WHERE status = 'ACCEPTED'`).Scan(&acceptedRows); err != nil {
		t.Fatalf("count proposals: %v", err)
	}
	if err := server.pool.QueryRow(ctx, `SELECT count(*) FROM purchases WHERE offer_id IS NOT NULL`).Scan(&purchases); err != nil {
		t.Fatalf("count purchases: %v", err)
	}
	if acceptedRows != 1 || purchases != 1 {
		t.Fatalf("expected one accepted proposal and one purchase, got %d and %d", acceptedRows, purchases)
	}
}

func TestNotificationStreamIntegration(t *testing.T) {
	server, cleanup := newTestServer(t)
	defer cleanup()

	seller, buyer := uuid.New(), uuid.New()
	l := seedListing(t, server.pool, seller)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/notifications/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+signToken(t, seller))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || line != ": connected\n" {
		t.Fatalf("unexpected stream preamble %q: %v", line, err)
	}

	status, body := doJSON(t, http.MethodPost, server.URL+"/v1/listings/"+l.ID.String()+"/purchases", buyer, map[string]int{"quantity": 1})
	if status != http.StatusCreated {
		t.Fatalf("create purchase status %d: %v", status, body)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var n map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if n["type"] != "PURCHASE_CREATED" {
			t.Fatalf("unexpected notification type %v", n["type"])
		}
		return
	}
}

func doJSON(t *testing.T, method, url string, userID uuid.UUID, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Errorf("marshal request: %v", err)
			return 0, nil
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Errorf("new request: %v", err)
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, userID))
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Errorf("%s %s: %v", method, url, err)
		return 0, nil
	}
	defer resp.Body.Close()
	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func signToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Errorf("sign token: %v", err)
	}
	return signed
}

func seedListing(t *testing.T, pool *pgxpool.Pool, sellerID uuid.UUID) *listing.Listing {
	t.Helper()
	now := time.Now().UTC()
	l := &listing.Listing{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Title:     "Stadium Tour",
		Status:    listing.StatusActive,
		Price:     decimal.NewFromInt(150),
		Quantity:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := postgres.NewListingRepository(pool).Create(context.Background(), l); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return l
}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	dsn := testDatabaseURL(t)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("db pool: %v", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	if err := resetDatabase(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("reset db: %v", err)
	}

	logger := zerolog.Nop()
	txm := postgres.NewTxManager(pool)
	listings := postgres.NewListingRepository(pool)
	offers := postgres.NewOfferRepository(pool)
	purchases := postgres.NewPurchaseRepository(pool)
	notifications := postgres.NewNotificationRepository(pool)

	hub := sse.NewHub(sse.DefaultBuffer, logger)
	gate := availability.NewGate(listings, purchases, offers, logger)
	fees, err := purchase.NewFeeCalculator("total * 0.05")
	if err != nil {
		pool.Close()
		t.Fatalf("fee calculator: %v", err)
	}
	dispatcher := dispatch.NewDispatcher(listings, notifications, hub, dispatch.Config{
		RelistOnCancel:      true,
		NotificationRetries: 2,
		RetryDelay:          10 * time.Millisecond,
	}, nil, logger)
	purchaseSvc := purchase.NewService(txm, purchases, listings, offers, gate, fees, dispatcher, nil, logger)
	negotiationSvc := negotiation.NewService(txm, offers, gate, purchaseSvc, dispatcher, decimal.Zero, nil, logger)
	notificationSvc := notification.NewService(notifications, logger)

	apiServer := httpapi.NewServer(gate, purchaseSvc, negotiationSvc, notificationSvc, hub, nil, jwtSecret, 10*time.Second, logger)
	server := httptest.NewServer(apiServer.Router())

	cleanup := func() {
		hub.Stop()
		server.Close()
		pool.Close()
	}

	return &testServer{Server: server, pool: pool}, cleanup
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	t.Skip("TEST_DATABASE_URL not set; skipping integration tests")
	return ""
}

func resetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		TRUNCATE TABLE
			purchase_transitions,
			purchases,
			proposals,
			offers,
			listings,
			notifications
		CASCADE
	`)
	return err
}
