package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ordenapp/internal/domain"
	"ordenapp/internal/events"
	"ordenapp/internal/repository"
	"ordenapp/internal/usecase/interfaces"
)

// settingReportTemplate overrides the configured report template id
const settingReportTemplate = "documents.report_template"

// FinalizeInput is the execution payload sent by the technician when closing an order
type FinalizeInput struct {
	OrderID           int64                   `json:"-"`
	Actor             int64                   `json:"-"`
	WorkPerformed     string                  `json:"workPerformed"`
	TechnicianRemarks string                  `json:"technicianRemarks"`
	Results           []domain.PlanItemResult `json:"results"`
}

// FinalizeResult is returned by a successful finalization, or by a replay on a
// completed order
type FinalizeResult struct {
	Order    *domain.ServiceOrder      `json:"order"`
	Document *domain.GeneratedDocument `json:"document"`
	Warnings []string                  `json:"warnings,omitempty"`
	Replayed bool                      `json:"replayed"`
}

// FinalizerConfig tunes the pipeline
type FinalizerConfig struct {
	Render            RetryPolicy
	Upload            RetryPolicy
	NotifyTimeout     time.Duration
	DefaultTemplateID string
	PublicBaseURL     string
	SignedURLTTL      time.Duration
	Requirements      domain.FinalizationRequirements
}

// IFinalizeUseCase closes orders and serves their generated documents
type IFinalizeUseCase interface {
	Finalize(ctx context.Context, in FinalizeInput) (*FinalizeResult, error)
	Documents(ctx context.Context, orderID int64) ([]domain.GeneratedDocument, error)
}

// FinalizeUseCase runs the finalization pipeline:
//
//  1. preconditions (no side effects)
//  2. execution data, in one transaction, skipped when already recorded
//  3. render with retry
//  4. upload with retry, reusing the rendered bytes
//  5. document upsert and COMPLETED transition, in one transaction
//  6. email and event, best effort
//
// No transaction is held across a remote call.
type FinalizeUseCase struct {
	repos     *repository.Repositories
	renderer  interfaces.IDocumentRenderer
	store     interfaces.IBlobStore
	notifier  interfaces.INotifier
	publisher interfaces.IEventPublisher
	cfg       FinalizerConfig
	now       func() time.Time
}

var _ IFinalizeUseCase = (*FinalizeUseCase)(nil)

// NewFinalizeUseCase creates the orchestrator; notifier and publisher may be nil
func NewFinalizeUseCase(
	repos *repository.Repositories,
	renderer interfaces.IDocumentRenderer,
	store interfaces.IBlobStore,
	notifier interfaces.INotifier,
	publisher interfaces.IEventPublisher,
	cfg FinalizerConfig,
) *FinalizeUseCase {
	if cfg.DefaultTemplateID == "" {
		cfg.DefaultTemplateID = "service_report"
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 24 * time.Hour
	}
	return &FinalizeUseCase{
		repos:     repos,
		renderer:  renderer,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (u *FinalizeUseCase) Finalize(ctx context.Context, in FinalizeInput) (*FinalizeResult, error) {
	o, err := loadOrder(ctx, u.repos, in.OrderID)
	if err != nil {
		return nil, err
	}

	if o.Status == domain.OrderStatusCompleted {
		if res, err := u.replay(ctx, o); res != nil || err != nil {
			return res, err
		}
	}
	if err := domain.CheckFinalizable(o); err != nil {
		return nil, err
	}

	// Stage 1: preconditions
	items, err := u.repos.Plans.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	evidence, err := u.repos.Evidence.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	signatures, err := u.repos.Signatures.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	var changed []domain.ActivityPlanItem
	recorded := o.ExecutionRecordedAt != nil
	if recorded {
		if len(in.Results) > 0 || in.WorkPerformed != "" || in.TechnicianRemarks != "" {
			warnings = append(warnings, "execution data was already recorded by a previous attempt; the new payload was ignored")
		}
	} else {
		items, changed, err = domain.ApplyResults(o, items, in.Results, u.now())
		if err != nil {
			return nil, err
		}
	}
	if err := domain.CheckFinalizationPreconditions(o, items, evidence, signatures, u.cfg.Requirements); err != nil {
		log.Printf("[finalize][usecase] rejected order_id=%d err=%v", o.ID, err)
		return nil, err
	}

	// Stage 2: execution data
	if !recorded {
		if err := u.recordExecution(ctx, o, changed, in); err != nil {
			return nil, err
		}
		log.Printf("[finalize][usecase] stage=execution order_id=%d items=%d version=%d", o.ID, len(changed), o.Version)
	}

	// Stage 3: render
	completedAt := u.now()
	snapshot, err := u.snapshot(ctx, o, items, evidence, signatures, completedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	templateID := u.templateID(ctx)

	var data []byte
	var contentType string
	err = retry(ctx, u.cfg.Render, "render", o.ID, func(ctx context.Context) error {
		var rerr error
		data, contentType, rerr = u.renderer.Render(ctx, templateID, snapshot)
		if rerr == nil && len(data) == 0 {
			rerr = errors.New("renderer returned an empty document")
		}
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRenderingFailed, err)
	}

	// Stage 4: upload
	objectKey := fmt.Sprintf("orders/%d/documents/%s%s", o.ID, domain.DocumentServiceReport, extensionFor(contentType))
	var url string
	err = retry(ctx, u.cfg.Upload, "upload", o.ID, func(ctx context.Context) error {
		var uerr error
		url, uerr = u.store.Put(ctx, data, objectKey, contentType)
		return uerr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	// Stage 5: commit
	doc := &domain.GeneratedDocument{
		OrderID:      o.ID,
		DocumentType: domain.DocumentServiceReport,
		URL:          url,
		ObjectKey:    objectKey,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		TemplateID:   templateID,
		GeneratedBy:  in.Actor,
		GeneratedAt:  completedAt,
	}
	if err := u.commit(ctx, o, doc, in.Actor, completedAt); err != nil {
		return nil, err
	}
	log.Printf("[finalize][usecase] completed order_id=%d number=%s document=%s bytes=%d", o.ID, o.Number, objectKey, doc.SizeBytes)

	// Stage 6: notification
	warnings = append(warnings, u.notify(ctx, o, snapshot.Client, doc)...)

	u.sign(ctx, doc)
	return &FinalizeResult{Order: o, Document: doc, Warnings: warnings}, nil
}

// replay answers a finalize call on a completed order with its current document.
// It returns nil, nil when no document exists so the caller reports the transition error.
func (u *FinalizeUseCase) replay(ctx context.Context, o *domain.ServiceOrder) (*FinalizeResult, error) {
	doc, err := u.repos.Documents.GetCurrent(ctx, o.ID, domain.DocumentServiceReport)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	log.Printf("[finalize][usecase] replay order_id=%d document_id=%d", o.ID, doc.ID)
	u.sign(ctx, doc)
	return &FinalizeResult{Order: o, Document: doc, Replayed: true}, nil
}

func (u *FinalizeUseCase) recordExecution(ctx context.Context, o *domain.ServiceOrder, changed []domain.ActivityPlanItem, in FinalizeInput) error {
	recordedAt := u.now()
	o.WorkPerformed = strings.TrimSpace(in.WorkPerformed)
	if remarks := strings.TrimSpace(in.TechnicianRemarks); remarks != "" {
		o.TechnicianRemarks = remarks
	}
	o.ExecutionRecordedAt = &recordedAt
	o.UpdatedBy = in.Actor

	err := u.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.Orders.Update(ctx, o); err != nil {
			return err
		}
		for i := range changed {
			if err := tx.Plans.Update(ctx, &changed[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		o.ExecutionRecordedAt = nil
		if isConflict(err) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (u *FinalizeUseCase) commit(ctx context.Context, o *domain.ServiceOrder, doc *domain.GeneratedDocument, actor int64, completedAt time.Time) error {
	closed := *o
	if err := domain.Complete(&closed, completedAt); err != nil {
		return err
	}
	closed.UpdatedBy = actor

	err := u.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.Orders.Update(ctx, &closed); err != nil {
			return err
		}
		if err := tx.Documents.Upsert(ctx, doc); err != nil {
			return err
		}
		return tx.Orders.CreateStatusHistory(ctx, &domain.OrderStatusChange{
			OrderID:   o.ID,
			Status:    domain.OrderStatusCompleted,
			ChangedBy: actor,
			Notes:     "Orden finalizada",
		})
	})
	if err != nil {
		if isConflict(err) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	*o = closed
	return nil
}

// snapshot gathers everything the report shows, as it will read once completed
func (u *FinalizeUseCase) snapshot(ctx context.Context, o *domain.ServiceOrder, items []domain.ActivityPlanItem,
	evidence []domain.Evidence, signatures []domain.DigitalSignature, completedAt time.Time) (*domain.ReportSnapshot, error) {
	snap := &domain.ReportSnapshot{
		Order:       *o,
		Items:       items,
		Evidence:    evidence,
		Signatures:  signatures,
		GeneratedAt: completedAt,
	}
	snap.Order.Status = domain.OrderStatusCompleted
	snap.Order.CompletedAt = &completedAt

	var err error
	if snap.Client, err = u.repos.Clients.GetByID(ctx, o.ClientID); err != nil {
		return nil, err
	}
	if o.HasTechnician() {
		if snap.Technician, err = u.repos.Users.GetByID(ctx, *o.TechnicianID); err != nil {
			return nil, err
		}
	}
	if snap.ServiceType, err = u.repos.Catalog.GetServiceType(ctx, o.ServiceTypeID); err != nil {
		return nil, err
	}
	if base := strings.TrimRight(u.cfg.PublicBaseURL, "/"); base != "" {
		snap.VerificationURL = base + "/ordenes/" + o.Number
	}
	return snap, nil
}

func (u *FinalizeUseCase) templateID(ctx context.Context) string {
	id, err := u.repos.Settings.Get(ctx, settingReportTemplate)
	if err != nil {
		log.Printf("[finalize][usecase] template setting unavailable, using default err=%v", err)
	}
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return u.cfg.DefaultTemplateID
}

// notify runs after the commit point; failures only produce warnings
func (u *FinalizeUseCase) notify(ctx context.Context, o *domain.ServiceOrder, client *domain.Client, doc *domain.GeneratedDocument) []string {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.NotifyTimeout)
	defer cancel()

	var warnings []string
	if u.notifier != nil {
		switch {
		case client == nil || strings.TrimSpace(client.Email) == "":
			warnings = append(warnings, "client has no email address; report not sent")
		default:
			subject := fmt.Sprintf("Informe de servicio %s", o.Number)
			body := fmt.Sprintf("Estimado cliente,\n\nLa orden %s fue completada. El informe de servicio está disponible en el enlace adjunto.\n", o.Number)
			if err := u.notifier.SendEmail(nctx, client.Email, subject, body, doc.URL); err != nil {
				log.Printf("[finalize][usecase] stage=notify order_id=%d err=%v", o.ID, err)
				warnings = append(warnings, "report email could not be sent: "+err.Error())
			}
		}
	}

	if u.publisher != nil {
		evt := events.NewOrderEvent(events.EventOrderCompleted, u.now())
		evt.OrderID = o.ID
		evt.OrderNumber = o.Number
		evt.Status = o.Status
		evt.ClientID = o.ClientID
		evt.ChangedBy = doc.GeneratedBy
		evt.DocumentURL = doc.URL
		evt.DocumentType = doc.DocumentType
		if err := u.publisher.Publish(nctx, evt); err != nil {
			log.Printf("[finalize][usecase] stage=event order_id=%d err=%v", o.ID, err)
			warnings = append(warnings, "completion event could not be published: "+err.Error())
		}
	}
	return warnings
}

// Documents lists the current documents of an order with fresh signed URLs
func (u *FinalizeUseCase) Documents(ctx context.Context, orderID int64) ([]domain.GeneratedDocument, error) {
	if _, err := loadOrder(ctx, u.repos, orderID); err != nil {
		return nil, err
	}
	docs, err := u.repos.Documents.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		u.sign(ctx, &docs[i])
	}
	return docs, nil
}

func (u *FinalizeUseCase) sign(ctx context.Context, doc *domain.GeneratedDocument) {
	if u.store == nil || doc.ObjectKey == "" {
		return
	}
	signed, err := u.store.SignedURL(ctx, doc.ObjectKey, u.cfg.SignedURLTTL)
	if err != nil {
		log.Printf("[finalize][usecase] signed url failed order_id=%d key=%s err=%v", doc.OrderID, doc.ObjectKey, err)
		return
	}
	doc.SignedURL = signed
}
