package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dealsight/dealsight/internal/alert"
	"github.com/dealsight/dealsight/internal/listing"
	"github.com/dealsight/dealsight/internal/model"
	"github.com/dealsight/dealsight/internal/security"
)

func f64(v float64) *float64 { return &v }

// mockPrefsRepo はテスト用のアラート設定リポジトリ。
type mockPrefsRepo struct {
	mu          sync.Mutex
	due         []*model.UserPreferences
	lastAlertAt map[string]time.Time
	listErr     error
}

func newMockPrefsRepo(due ...*model.UserPreferences) *mockPrefsRepo {
	return &mockPrefsRepo{due: due, lastAlertAt: make(map[string]time.Time)}
}

func (m *mockPrefsRepo) FindByUserID(ctx context.Context, userID string) (*model.UserPreferences, error) {
	return nil, nil
}

func (m *mockPrefsRepo) Upsert(ctx context.Context, prefs *model.UserPreferences) error {
	return nil
}

func (m *mockPrefsRepo) ListDueForAlert(ctx context.Context, now time.Time) ([]*model.UserPreferences, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.due, nil
}

func (m *mockPrefsRepo) UpdateLastAlertAt(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAlertAt[userID] = at
	return nil
}

func (m *mockPrefsRepo) recordedAt(userID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.lastAlertAt[userID]
	return at, ok
}

// mockAlertRepo はテスト用のアラート条件リポジトリ。
type mockAlertRepo struct {
	byUser map[string][]*model.Alert
}

func (m *mockAlertRepo) ListByUser(ctx context.Context, userID string) ([]*model.Alert, error) {
	return m.byUser[userID], nil
}

func (m *mockAlertRepo) Create(ctx context.Context, a *model.Alert) error { return nil }

func (m *mockAlertRepo) Delete(ctx context.Context, userID, alertID string) (bool, error) {
	return false, nil
}

// mockListingRepo はテスト用の案件リポジトリ。
type mockListingRepo struct {
	recent []model.RawListing
}

func (m *mockListingRepo) ListActive(ctx context.Context) ([]model.RawListing, error) {
	return nil, nil
}

func (m *mockListingRepo) FindByID(ctx context.Context, id string) (*model.RawListing, error) {
	return nil, nil
}

func (m *mockListingRepo) ListFirstSeenSince(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	return m.recent, nil
}

// mockSender は配信されたダイジェストを記録する。
type mockSender struct {
	mu      sync.Mutex
	sent    map[string]*alert.RenderedDigest
	sendErr error
}

func newMockSender() *mockSender {
	return &mockSender{sent: make(map[string]*alert.RenderedDigest)}
}

func (m *mockSender) Send(toEmail string, digest *alert.RenderedDigest) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[toEmail] = digest
	return nil
}

func (m *mockSender) sentTo(email string) (*alert.RenderedDigest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.sent[email]
	return d, ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dailyPrefs(userID, email string) *model.UserPreferences {
	return &model.UserPreferences{
		UserID:         userID,
		Email:          email,
		MinPrice:       0,
		MaxPrice:       10_000_000,
		Industries:     []string{},
		AlertFrequency: model.AlertFrequencyDaily,
	}
}

func sampleRawListing(id, title string, price float64) model.RawListing {
	now := time.Now().UTC()
	return model.RawListing{
		ID:             id,
		Title:          title,
		Description:    "A profitable online business",
		AskingPrice:    f64(price),
		Revenue:        f64(240_000),
		EBITDA:         f64(120_000),
		Industry:       "SaaS",
		SourcePlatform: "Flippa",
		Status:         "active",
		FirstSeenAt:    &now,
		CreatedAt:      &now,
	}
}

func newTestScheduler(
	t *testing.T,
	prefsRepo *mockPrefsRepo,
	alertRepo *mockAlertRepo,
	listingRepo *mockListingRepo,
	sender *mockSender,
) *Scheduler {
	t.Helper()

	renderer, err := alert.NewRenderer()
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	normalizer := listing.NewNormalizer(security.NewDescriptionSanitizer())

	return NewScheduler(
		prefsRepo, alertRepo, listingRepo,
		normalizer, renderer, sender,
		nil, nil, testLogger(), 4,
	)
}

func TestRunOnce_DeliversDigestToMatchingUser(t *testing.T) {
	prefsRepo := newMockPrefsRepo(dailyPrefs("user-1", "buyer@example.com"))
	alertRepo := &mockAlertRepo{byUser: map[string][]*model.Alert{
		"user-1": {{ID: "a1", UserID: "user-1", BusinessTypes: []string{"SaaS"}}},
	}}
	listingRepo := &mockListingRepo{recent: []model.RawListing{
		sampleRawListing("l1", "Profitable SaaS Tool", 250_000),
	}}
	sender := newMockSender()

	s := newTestScheduler(t, prefsRepo, alertRepo, listingRepo, sender)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	digest, ok := sender.sentTo("buyer@example.com")
	if !ok {
		t.Fatal("expected digest to be delivered")
	}
	if digest.Subject == "" {
		t.Error("digest subject should not be empty")
	}

	if _, ok := prefsRepo.recordedAt("user-1"); !ok {
		t.Error("last_alert_at should be recorded after successful delivery")
	}
}

func TestRunOnce_NoMatchingListings_SkipsDelivery(t *testing.T) {
	prefsRepo := newMockPrefsRepo(dailyPrefs("user-1", "buyer@example.com"))
	alertRepo := &mockAlertRepo{byUser: map[string][]*model.Alert{
		"user-1": {{ID: "a1", UserID: "user-1", MinPrice: f64(5_000_000)}},
	}}
	listingRepo := &mockListingRepo{recent: []model.RawListing{
		sampleRawListing("l1", "Small Blog", 10_000),
	}}
	sender := newMockSender()

	s := newTestScheduler(t, prefsRepo, alertRepo, listingRepo, sender)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := sender.sentTo("buyer@example.com"); ok {
		t.Error("digest should not be delivered when nothing matches")
	}
	if _, ok := prefsRepo.recordedAt("user-1"); ok {
		t.Error("last_alert_at should not advance without a delivery")
	}
}

func TestRunOnce_NoNewListings_SkipsDelivery(t *testing.T) {
	prefsRepo := newMockPrefsRepo(dailyPrefs("user-1", "buyer@example.com"))
	alertRepo := &mockAlertRepo{byUser: map[string][]*model.Alert{}}
	listingRepo := &mockListingRepo{}
	sender := newMockSender()

	s := newTestScheduler(t, prefsRepo, alertRepo, listingRepo, sender)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := sender.sentTo("buyer@example.com"); ok {
		t.Error("digest should not be delivered without new listings")
	}
}

func TestRunOnce_UserWithoutAlerts_UsesPreferencesRange(t *testing.T) {
	// アラート未定義でも設定の価格帯で配信される
	prefs := dailyPrefs("user-1", "buyer@example.com")
	prefs.MaxPrice = 100_000
	prefsRepo := newMockPrefsRepo(prefs)
	alertRepo := &mockAlertRepo{byUser: map[string][]*model.Alert{}}
	listingRepo := &mockListingRepo{recent: []model.RawListing{
		sampleRawListing("cheap", "Small Blog", 50_000),
		sampleRawListing("expensive", "Large SaaS", 2_000_000),
	}}
	sender := newMockSender()

	s := newTestScheduler(t, prefsRepo, alertRepo, listingRepo, sender)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	digest, ok := sender.sentTo("buyer@example.com")
	if !ok {
		t.Fatal("expected digest to be delivered")
	}
	if !contains(digest.Text, "Small Blog") {
		t.Error("digest should contain the listing within the price range")
	}
	if contains(digest.Text, "Large SaaS") {
		t.Error("digest should exclude the listing above the price range")
	}
}

func TestRunOnce_SendFailure_DoesNotAdvanceLastAlertAt(t *testing.T) {
	prefsRepo := newMockPrefsRepo(dailyPrefs("user-1", "buyer@example.com"))
	alertRepo := &mockAlertRepo{byUser: map[string][]*model.Alert{
		"user-1": {{ID: "a1", UserID: "user-1"}},
	}}
	listingRepo := &mockListingRepo{recent: []model.RawListing{
		sampleRawListing("l1", "Profitable SaaS Tool", 250_000),
	}}
	sender := newMockSender()
	sender.sendErr = errors.New("smtp connection refused")

	s := newTestScheduler(t, prefsRepo, alertRepo, listingRepo, sender)

	// 配信失敗はサイクル全体のエラーにはしない
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := prefsRepo.recordedAt("user-1"); ok {
		t.Error("last_alert_at should not advance when delivery fails")
	}
}

func TestRunOnce_MultipleUsers_AllDelivered(t *testing.T) {
	prefsRepo := newMockPrefsRepo(
		dailyPrefs("user-1", "one@example.com"),
		dailyPrefs("user-2", "two@example.com"),
		dailyPrefs("user-3", "three@example.com"),
	)
	alertRepo := &mockAlertRepo{byUser: map[string][]*model.Alert{
		"user-1": {{ID: "a1", UserID: "user-1"}},
		"user-2": {{ID: "a2", UserID: "user-2"}},
		"user-3": {{ID: "a3", UserID: "user-3"}},
	}}
	listingRepo := &mockListingRepo{recent: []model.RawListing{
		sampleRawListing("l1", "Profitable SaaS Tool", 250_000),
	}}
	sender := newMockSender()

	s := newTestScheduler(t, prefsRepo, alertRepo, listingRepo, sender)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, email := range []string{"one@example.com", "two@example.com", "three@example.com"} {
		if _, ok := sender.sentTo(email); !ok {
			t.Errorf("expected digest for %s", email)
		}
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	prefsRepo := newMockPrefsRepo()
	s := newTestScheduler(t, prefsRepo, &mockAlertRepo{}, &mockListingRepo{}, newMockSender())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
