package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"ordenapp/internal/domain"
	"ordenapp/internal/repository"
	"ordenapp/internal/usecase/interfaces"
)

// EvidenceInput is one photo uploaded from the field
type EvidenceInput struct {
	OrderID     int64
	Phase       string
	Description string
	ContentType string
	Data        []byte
	UploadedBy  int64
}

// SignatureInput is one signature image captured on the device
type SignatureInput struct {
	OrderID     int64
	Role        string
	SignerName  string
	SignerID    *int64
	ContentType string
	Data        []byte
}

// ICollectorUseCase exposes evidence and signature capture
type ICollectorUseCase interface {
	AddEvidence(ctx context.Context, in EvidenceInput) (*domain.Evidence, error)
	AddSignature(ctx context.Context, in SignatureInput) (*domain.DigitalSignature, error)
	ListEvidence(ctx context.Context, orderID int64) ([]domain.Evidence, error)
	ListSignatures(ctx context.Context, orderID int64) ([]domain.DigitalSignature, error)
}

// CollectorUseCase stores artifacts in the blob store and keeps their references.
// Uploads are attempted once; the device retries on failure.
type CollectorUseCase struct {
	repos *repository.Repositories
	store interfaces.IBlobStore
	now   func() time.Time
}

var _ ICollectorUseCase = (*CollectorUseCase)(nil)

func NewCollectorUseCase(repos *repository.Repositories, store interfaces.IBlobStore) *CollectorUseCase {
	return &CollectorUseCase{
		repos: repos,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (u *CollectorUseCase) AddEvidence(ctx context.Context, in EvidenceInput) (*domain.Evidence, error) {
	phase := strings.ToUpper(strings.TrimSpace(in.Phase))
	if !domain.ValidPhase(phase) {
		return nil, fmt.Errorf("phase %q: %w", in.Phase, domain.ErrUnsupportedPhase)
	}
	if len(in.Data) == 0 {
		return nil, domain.NewValidationError("file", "evidence file is empty")
	}

	o, err := u.openOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("orders/%d/evidence/%s/%s%s", o.ID, strings.ToLower(phase), uuid.NewString(), extensionFor(in.ContentType))
	url, err := u.store.Put(ctx, in.Data, key, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	ev := &domain.Evidence{
		OrderID:     o.ID,
		Phase:       phase,
		URL:         url,
		ObjectKey:   key,
		ContentType: in.ContentType,
		SizeBytes:   int64(len(in.Data)),
		Description: strings.TrimSpace(in.Description),
		CapturedAt:  u.now(),
		UploadedBy:  in.UploadedBy,
	}
	if err := u.repos.Evidence.Create(ctx, ev); err != nil {
		log.Printf("[collector][usecase] evidence not recorded order_id=%d key=%s err=%v", o.ID, key, err)
		return nil, err
	}
	return ev, nil
}

func (u *CollectorUseCase) AddSignature(ctx context.Context, in SignatureInput) (*domain.DigitalSignature, error) {
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if !domain.ValidSignerRole(role) {
		return nil, fmt.Errorf("role %q: %w", in.Role, domain.ErrUnsupportedRole)
	}
	if len(in.Data) == 0 {
		return nil, domain.NewValidationError("file", "signature image is empty")
	}

	o, err := u.openOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.SignerName)
	if name == "" && role == domain.SignerTechnician && o.HasTechnician() {
		tech, err := u.repos.Users.GetByID(ctx, *o.TechnicianID)
		if err != nil {
			return nil, err
		}
		if tech != nil {
			name = tech.Name
		}
	}
	if name == "" {
		return nil, domain.NewValidationError("signerName", "signer name is required")
	}

	key := fmt.Sprintf("orders/%d/signatures/%s-%s%s", o.ID, strings.ToLower(role), uuid.NewString(), extensionFor(in.ContentType))
	url, err := u.store.Put(ctx, in.Data, key, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	sig := &domain.DigitalSignature{
		OrderID:    o.ID,
		Role:       role,
		SignerID:   in.SignerID,
		SignerName: name,
		URL:        url,
		ObjectKey:  key,
		CapturedAt: u.now(),
	}
	if err := u.repos.Signatures.Create(ctx, sig); err != nil {
		log.Printf("[collector][usecase] signature not recorded order_id=%d key=%s err=%v", o.ID, key, err)
		return nil, err
	}
	return sig, nil
}

func (u *CollectorUseCase) ListEvidence(ctx context.Context, orderID int64) ([]domain.Evidence, error) {
	if _, err := loadOrder(ctx, u.repos, orderID); err != nil {
		return nil, err
	}
	return u.repos.Evidence.ListByOrder(ctx, orderID)
}

func (u *CollectorUseCase) ListSignatures(ctx context.Context, orderID int64) ([]domain.DigitalSignature, error) {
	if _, err := loadOrder(ctx, u.repos, orderID); err != nil {
		return nil, err
	}
	return u.repos.Signatures.ListByOrder(ctx, orderID)
}

// openOrder rejects terminal orders before anything is uploaded.
// The repositories check again at write time.
func (u *CollectorUseCase) openOrder(ctx context.Context, id int64) (*domain.ServiceOrder, error) {
	o, err := loadOrder(ctx, u.repos, id)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(o.Status) {
		return nil, domain.ErrOrderLocked
	}
	return o, nil
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "application/pdf":
		return ".pdf"
	case "text/html":
		return ".html"
	}
	return ""
}
