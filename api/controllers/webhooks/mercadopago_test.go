package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/davidbarrios/platerush-backend/internal/reconcile"
)

type fakeReconcileService struct {
	mu     sync.Mutex
	calls  int
	failAt int
	last   reconcile.WebhookEvent
}

func (f *fakeReconcileService) HandleEvent(ctx context.Context, event reconcile.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = event
	if f.failAt != 0 && f.calls == f.failAt {
		return errors.New("reconcile failed")
	}
	return nil
}

func (f *fakeReconcileService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeReconcileService) lastEvent() reconcile.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeSigningClient struct {
	secret string
}

func (f *fakeSigningClient) SigningSecret() string { return f.secret }

type inMemoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{keys: map[string]bool{}}
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return "pr:idempotency:" + scope + ":" + id
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *inMemoryStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key]
}

const testWebhookSecret = "mp_test_secret"

// waitUntil polls for processing that happens after the HTTP ack.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func signedPaymentRequest(t *testing.T, eventID, paymentID string) *http.Request {
	t.Helper()
	body := fmt.Sprintf(`{"id":%s,"type":"payment","action":"payment.updated","data":{"id":%q}}`, eventID, paymentID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", bytes.NewReader([]byte(body)))
	req.Header.Set("x-request-id", "req-1")

	ts := "1724000000"
	manifest := fmt.Sprintf("id:%s;request-id:req-1;ts:%s;", paymentID, ts)
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(manifest))
	req.Header.Set("x-signature", fmt.Sprintf("ts=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func newWebhookHandler(svc *fakeReconcileService) (http.HandlerFunc, *inMemoryStore) {
	store := newInMemoryStore()
	guard, err := reconcile.NewIdempotencyGuard(store, time.Minute)
	if err != nil {
		panic(err)
	}
	return MercadoPagoWebhook(svc, &fakeSigningClient{secret: testWebhookSecret}, guard, nil), store
}

func TestMercadoPagoWebhook_ProcessesOnce(t *testing.T) {
	service := &fakeReconcileService{}
	handler, _ := newWebhookHandler(service)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedPaymentRequest(t, "12345", "987654"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	waitUntil(t, func() bool { return service.callCount() == 1 })
	last := service.lastEvent()
	if last.PaymentID != "987654" || last.Type != "payment" {
		t.Fatalf("unexpected event forwarded: %+v", last)
	}

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, signedPaymentRequest(t, "12345", "987654"))
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec2.Code)
	}
	time.Sleep(50 * time.Millisecond)
	if service.callCount() != 1 {
		t.Fatalf("duplicate delivery must not reprocess, call count %d", service.callCount())
	}
}

func TestMercadoPagoWebhook_AcksBeforeProcessing(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := &blockingReconcileService{release: release, started: started}
	store := newInMemoryStore()
	guard, err := reconcile.NewIdempotencyGuard(store, time.Minute)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := MercadoPagoWebhook(slow, &fakeSigningClient{secret: testWebhookSecret}, guard, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedPaymentRequest(t, "55", "424242"))

	// The response must be written even though processing is still stuck.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected immediate 200, got %d", rec.Code)
	}
	<-started
	close(release)
}

type blockingReconcileService struct {
	release <-chan struct{}
	started chan<- struct{}
}

func (b *blockingReconcileService) HandleEvent(ctx context.Context, event reconcile.WebhookEvent) error {
	b.started <- struct{}{}
	<-b.release
	return nil
}

func TestMercadoPagoWebhook_RejectsBadSignature(t *testing.T) {
	service := &fakeReconcileService{}
	handler, _ := newWebhookHandler(service)

	req := signedPaymentRequest(t, "12345", "987654")
	req.Header.Set("x-signature", "ts=1724000000,v1=deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
	if service.callCount() != 0 {
		t.Fatal("service must not run on a bad signature")
	}
}

func TestMercadoPagoWebhook_ReleasesGuardOnFailure(t *testing.T) {
	service := &fakeReconcileService{failAt: 1}
	handler, store := newWebhookHandler(service)
	key := store.IdempotencyKey("mercadopago", "777")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedPaymentRequest(t, "777", "111222"))
	if rec.Code != http.StatusOK {
		t.Fatalf("delivery is acked regardless of processing, got %d", rec.Code)
	}

	// The failed attempt must hand its idempotency key back.
	waitUntil(t, func() bool { return service.callCount() == 1 && !store.has(key) })

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, signedPaymentRequest(t, "777", "111222"))
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec2.Code)
	}
	waitUntil(t, func() bool { return service.callCount() == 2 })
	if !store.has(key) {
		t.Fatal("successful retry must keep the idempotency key")
	}
}

func TestMercadoPagoWebhook_MissingSignatureHeader(t *testing.T) {
	service := &fakeReconcileService{}
	handler, _ := newWebhookHandler(service)

	req := signedPaymentRequest(t, "888", "333444")
	req.Header.Del("x-signature")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
	if service.callCount() != 0 {
		t.Fatal("service must not run without a signature")
	}
}
