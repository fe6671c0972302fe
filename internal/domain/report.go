package domain

import "time"

// ReportSnapshot is the immutable input of the service report renderer
type ReportSnapshot struct {
	Order           ServiceOrder       `json:"order"`
	Client          *Client            `json:"client,omitempty"`
	Technician      *User              `json:"technician,omitempty"`
	ServiceType     *ServiceType       `json:"serviceType,omitempty"`
	Items           []ActivityPlanItem `json:"items"`
	Evidence        []Evidence         `json:"evidence"`
	Signatures      []DigitalSignature `json:"signatures"`
	VerificationURL string             `json:"verificationUrl,omitempty"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}

// EvidenceByPhase groups the snapshot evidence in BEFORE, DURING, AFTER order
func (s *ReportSnapshot) EvidenceByPhase() map[string][]Evidence {
	out := make(map[string][]Evidence, 3)
	for _, e := range s.Evidence {
		out[e.Phase] = append(out[e.Phase], e)
	}
	return out
}

// Signature returns the latest signature of a role, nil when absent
func (s *ReportSnapshot) Signature(role string) *DigitalSignature {
	var found *DigitalSignature
	for i := range s.Signatures {
		sig := &s.Signatures[i]
		if sig.Role != role {
			continue
		}
		if found == nil || sig.CapturedAt.After(found.CapturedAt) {
			found = sig
		}
	}
	return found
}
