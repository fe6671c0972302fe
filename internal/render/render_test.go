package render

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"ordenapp/internal/domain"
)

func sampleSnapshot() *domain.ReportSnapshot {
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	value := 401.5
	return &domain.ReportSnapshot{
		Order: domain.ServiceOrder{
			ID:                 7,
			Number:             "OS-2026-000007",
			Status:             domain.OrderStatusInProgress,
			Priority:           domain.PriorityAlta,
			InitialDescription: "Generador <no arranca>",
			StartedAt:          &started,
			Equipment: []domain.OrderEquipment{
				{Sequence: 1, Equipment: &domain.Equipment{Code: "GE-001", Description: "Generador 500 kVA"}},
			},
		},
		Client:      &domain.Client{Name: "Hospital Regional"},
		Technician:  &domain.User{Name: "Juan Pérez"},
		ServiceType: &domain.ServiceType{Name: "Mantenimiento preventivo generador"},
		Items: []domain.ActivityPlanItem{
			{Sequence: 1, SystemGroup: "Motor", ActivityName: "Revisar nivel de aceite", Mandatory: true, Completed: true},
			{Sequence: 2, SystemGroup: "Eléctrico", ActivityName: "Medir voltaje de salida", Kind: domain.ActivityKindMeasurement, Unit: "V", MeasuredValue: &value, Completed: true},
		},
		Evidence: []domain.Evidence{
			{Phase: domain.PhaseAfter, URL: "http://files/after.jpg"},
			{Phase: domain.PhaseBefore, URL: "http://files/before.jpg"},
		},
		Signatures: []domain.DigitalSignature{
			{Role: domain.SignerTechnician, SignerName: "Juan Pérez", URL: "http://files/sig-old.png", CapturedAt: started},
			{Role: domain.SignerTechnician, SignerName: "Juan Pérez", URL: "http://files/sig-new.png", CapturedAt: started.Add(time.Hour)},
		},
		VerificationURL: "https://ordenapp.example/ordenes/OS-2026-000007",
		GeneratedAt:     started.Add(2 * time.Hour),
	}
}

func newDefaultRenderer(t *testing.T) *HTMLRenderer {
	t.Helper()
	m, err := NewManager(DefaultTemplates(), false)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return NewHTMLRenderer(m)
}

func TestHTMLRenderer_ServiceReport(t *testing.T) {
	r := newDefaultRenderer(t)

	out, contentType, err := r.Render(context.Background(), "service_report", sampleSnapshot())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if contentType != htmlContentType {
		t.Fatalf("unexpected content type %s", contentType)
	}

	html := string(out)
	for _, want := range []string{
		"Informe de servicio OS-2026-000007",
		"Hospital Regional",
		"Revisar nivel de aceite",
		"401.5 V",
		"En Ejecución",
		"data:image/png;base64,",
		"sig-new.png",
		"Generador &lt;no arranca&gt;",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered report missing %q", want)
		}
	}
	if strings.Contains(html, "sig-old.png") {
		t.Errorf("superseded signature should not be rendered")
	}
	if strings.Index(html, "before.jpg") > strings.Index(html, "after.jpg") {
		t.Errorf("evidence should be grouped BEFORE then AFTER")
	}
}

func TestHTMLRenderer_UnknownTemplate(t *testing.T) {
	r := newDefaultRenderer(t)
	for _, id := range []string{"missing", "../layouts/base", ""} {
		if _, _, err := r.Render(context.Background(), id, sampleSnapshot()); err == nil {
			t.Fatalf("expected error for template %q", id)
		}
	}
}

func TestHTMLRenderer_CancelledContext(t *testing.T) {
	r := newDefaultRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.Render(ctx, "service_report", sampleSnapshot()); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestManager_ReloadPicksUpChanges(t *testing.T) {
	fsys := fstest.MapFS{
		"layouts/base.html":    {Data: []byte(`{{template "content" .}}`)},
		"reports/compact.html": {Data: []byte(`{{define "content"}}v1 {{.}}{{end}}`)},
		"reports/notes.txt":    {Data: []byte(`ignored`)},
	}

	m, err := NewManager(fsys, true)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if !m.Has("compact") || m.Has("notes") {
		t.Fatalf("unexpected template availability")
	}

	var sb strings.Builder
	if err := m.Render(&sb, "compact", "x"); err != nil || sb.String() != "v1 x" {
		t.Fatalf("first render: %q %v", sb.String(), err)
	}

	fsys["reports/compact.html"] = &fstest.MapFile{Data: []byte(`{{define "content"}}v2 {{.}}{{end}}`)}
	sb.Reset()
	if err := m.Render(&sb, "compact", "x"); err != nil || sb.String() != "v2 x" {
		t.Fatalf("reloaded render: %q %v", sb.String(), err)
	}
}

func TestRemoteRenderer(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Accept") != pdfContentType {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", pdfContentType)
		w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	r := NewRemoteRenderer(newDefaultRenderer(t), srv.URL)
	out, contentType, err := r.Render(context.Background(), "service_report", sampleSnapshot())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(out) != "%PDF-1.7 fake" || contentType != pdfContentType {
		t.Fatalf("unexpected output %q %s", out, contentType)
	}
	if !strings.Contains(gotBody, "OS-2026-000007") {
		t.Fatalf("service did not receive the html report")
	}
}

func TestRemoteRenderer_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewRemoteRenderer(newDefaultRenderer(t), srv.URL)
	_, _, err := r.Render(context.Background(), "service_report", sampleSnapshot())
	if err == nil || !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "chromium crashed") {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestRemoteRenderer_HonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r := NewRemoteRenderer(newDefaultRenderer(t), srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, _, err := r.Render(ctx, "service_report", sampleSnapshot()); err == nil {
		t.Fatalf("expected deadline error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("render did not respect the context deadline")
	}
}
