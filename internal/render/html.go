package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/skip2/go-qrcode"

	"ordenapp/internal/domain"
)

const htmlContentType = "text/html; charset=utf-8"

// HTMLRenderer renders report templates into a self-contained HTML document
type HTMLRenderer struct {
	templates *Manager
}

// NewHTMLRenderer creates a renderer over a template manager
func NewHTMLRenderer(templates *Manager) *HTMLRenderer {
	return &HTMLRenderer{templates: templates}
}

type phaseGroup struct {
	Label string
	Items []domain.Evidence
}

type reportView struct {
	*domain.ReportSnapshot
	QRCode              template.URL
	Phases              []phaseGroup
	TechnicianSignature *domain.DigitalSignature
	ClientSignature     *domain.DigitalSignature
}

// Render executes templateID against the snapshot
func (r *HTMLRenderer) Render(ctx context.Context, templateID string, snapshot *domain.ReportSnapshot) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if snapshot == nil {
		return nil, "", fmt.Errorf("nil report snapshot")
	}

	view := reportView{
		ReportSnapshot:      snapshot,
		TechnicianSignature: snapshot.Signature(domain.SignerTechnician),
		ClientSignature:     snapshot.Signature(domain.SignerClient),
	}

	byPhase := snapshot.EvidenceByPhase()
	for _, phase := range []string{domain.PhaseBefore, domain.PhaseDuring, domain.PhaseAfter} {
		if items := byPhase[phase]; len(items) > 0 {
			view.Phases = append(view.Phases, phaseGroup{Label: domain.PhaseLabel(phase), Items: items})
		}
	}

	if snapshot.VerificationURL != "" {
		png, err := qrcode.Encode(snapshot.VerificationURL, qrcode.Medium, 256)
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate QR code: %w", err)
		}
		view.QRCode = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	}

	var buf bytes.Buffer
	if err := r.templates.Render(&buf, templateID, view); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), htmlContentType, nil
}
