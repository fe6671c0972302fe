package usecase

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"ordenapp/internal/domain"
	"ordenapp/internal/events"
	"ordenapp/internal/repository"
	"ordenapp/internal/repository/sqlite"
	mock_interfaces "ordenapp/internal/usecase/interfaces/mocks"
)

type sentEmail struct {
	to, subject, attachmentURL string
}

// harness wires the use cases to a seeded SQLite database and gomock collaborators
// whose behaviour each test swaps through the *Fn hooks
type harness struct {
	t     *testing.T
	db    *sqlite.DB
	data  *sqlite.SampleData
	repos *repository.Repositories

	renderer  *mock_interfaces.MockIDocumentRenderer
	store     *mock_interfaces.MockIBlobStore
	notifier  *mock_interfaces.MockINotifier
	publisher *mock_interfaces.MockIEventPublisher

	mu          sync.Mutex
	renderFn    func(templateID string) ([]byte, string, error)
	putFn       func(path string) (string, error)
	sendFn      func(to string) error
	publishFn   func(evt events.OrderEvent) error
	templateIDs []string
	puts        []string
	emails      []sentEmail
	published   []events.OrderEvent

	orders    *OrderUseCase
	collector *CollectorUseCase
	finalizer *FinalizeUseCase
}

func testFinalizerConfig() FinalizerConfig {
	policy := RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, AttemptTimeout: time.Second}
	return FinalizerConfig{
		Render:            policy,
		Upload:            policy,
		NotifyTimeout:     time.Second,
		DefaultTemplateID: "service_report",
		PublicBaseURL:     "https://ordenapp.example",
		SignedURLTTL:      time.Hour,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "usecase.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	data, err := sqlite.SeedSampleData(context.Background(), db)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctrl := gomock.NewController(t)
	h := &harness{
		t:         t,
		db:        db,
		data:      data,
		repos:     sqlite.NewRepositories(db),
		renderer:  mock_interfaces.NewMockIDocumentRenderer(ctrl),
		store:     mock_interfaces.NewMockIBlobStore(ctrl),
		notifier:  mock_interfaces.NewMockINotifier(ctrl),
		publisher: mock_interfaces.NewMockIEventPublisher(ctrl),
		renderFn: func(string) ([]byte, string, error) {
			return []byte("%PDF-1.7 report"), "application/pdf", nil
		},
		putFn: func(path string) (string, error) {
			return "http://files.local/" + path, nil
		},
		sendFn:    func(string) error { return nil },
		publishFn: func(events.OrderEvent) error { return nil },
	}

	h.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, templateID string, _ *domain.ReportSnapshot) ([]byte, string, error) {
			h.mu.Lock()
			h.templateIDs = append(h.templateIDs, templateID)
			fn := h.renderFn
			h.mu.Unlock()
			return fn(templateID)
		}).AnyTimes()

	h.store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ []byte, path, _ string) (string, error) {
			h.mu.Lock()
			h.puts = append(h.puts, path)
			fn := h.putFn
			h.mu.Unlock()
			return fn(path)
		}).AnyTimes()

	h.store.EXPECT().SignedURL(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, path string, _ time.Duration) (string, error) {
			return "http://files.local/" + path + "?signature=test", nil
		}).AnyTimes()

	h.notifier.EXPECT().SendEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, to, subject, _, attachmentURL string) error {
			h.mu.Lock()
			h.emails = append(h.emails, sentEmail{to: to, subject: subject, attachmentURL: attachmentURL})
			fn := h.sendFn
			h.mu.Unlock()
			return fn(to)
		}).AnyTimes()

	h.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, evt events.OrderEvent) error {
			h.mu.Lock()
			h.published = append(h.published, evt)
			fn := h.publishFn
			h.mu.Unlock()
			return fn(evt)
		}).AnyTimes()

	h.orders = NewOrderUseCase(h.repos, h.publisher)
	h.collector = NewCollectorUseCase(h.repos, h.store)
	h.finalizer = NewFinalizeUseCase(h.repos, h.renderer, h.store, h.notifier, h.publisher, testFinalizerConfig())
	return h
}

func (h *harness) renderCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.templateIDs)
}

func (h *harness) putsWithPrefix(prefix string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, p := range h.puts {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// createOrder opens a PENDING order for the preventive generator service
func (h *harness) createOrder(requiresClientSignature bool) *domain.ServiceOrder {
	h.t.Helper()
	o, err := h.orders.Create(context.Background(), CreateOrderInput{
		ClientID:                h.data.ClientID,
		EquipmentIDs:            h.data.EquipmentIDs[:1],
		ServiceTypeID:           h.data.ServiceTypeID,
		Priority:                domain.PriorityAlta,
		Origin:                  domain.OriginScheduled,
		InitialDescription:      "Mantención trimestral",
		RequiresClientSignature: requiresClientSignature,
		CreatedBy:               h.data.AdminID,
	})
	if err != nil {
		h.t.Fatalf("create order: %v", err)
	}
	return o
}

// startedOrder returns an IN_PROGRESS order assigned to the seeded technician
func (h *harness) startedOrder(requiresClientSignature bool) *domain.ServiceOrder {
	h.t.Helper()
	ctx := context.Background()
	o := h.createOrder(requiresClientSignature)
	if _, err := h.orders.Assign(ctx, o.ID, h.data.AdminID, h.data.TechnicianID); err != nil {
		h.t.Fatalf("assign: %v", err)
	}
	started, err := h.orders.Start(ctx, o.ID, h.data.TechnicianID)
	if err != nil {
		h.t.Fatalf("start: %v", err)
	}
	return started
}

func (h *harness) sign(orderID int64, role string) {
	h.t.Helper()
	_, err := h.collector.AddSignature(context.Background(), SignatureInput{
		OrderID:     orderID,
		Role:        role,
		SignerName:  "Firmante " + role,
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
	})
	if err != nil {
		h.t.Fatalf("add %s signature: %v", role, err)
	}
}

// mandatoryResults completes every mandatory item, measuring 400 V where needed
func (h *harness) mandatoryResults(orderID int64) []domain.PlanItemResult {
	h.t.Helper()
	items, err := h.repos.Plans.ListByOrder(context.Background(), orderID)
	if err != nil {
		h.t.Fatalf("list plan: %v", err)
	}
	done := true
	var results []domain.PlanItemResult
	for _, it := range items {
		if !it.Mandatory {
			continue
		}
		r := domain.PlanItemResult{ItemID: it.ID, Completed: &done}
		if it.Kind == domain.ActivityKindMeasurement {
			v := 400.0
			r.MeasuredValue = &v
		}
		results = append(results, r)
	}
	return results
}

func (h *harness) reload(orderID int64) *domain.ServiceOrder {
	h.t.Helper()
	o, err := h.repos.Orders.GetByID(context.Background(), orderID)
	if err != nil || o == nil {
		h.t.Fatalf("reload order %d: %v", orderID, err)
	}
	return o
}
