package handler

import (
	"encoding/json"
	"strings"

	"tracevault/internal/credential/models"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

// IssueRequest carries a credential body and the identities it binds.
type IssueRequest struct {
	VC     json.RawMessage `json:"vc"`
	Owner  string          `json:"owner"`
	Aud    string          `json:"aud"`
	CVType string          `json:"cvType"`
}

// Normalize sanitizes inputs before validation.
func (r *IssueRequest) Normalize() {
	if r == nil {
		return
	}
	r.Owner = strings.TrimSpace(r.Owner)
	r.Aud = strings.TrimSpace(r.Aud)
	r.CVType = strings.TrimSpace(r.CVType)
}

// Validate checks that the request is well-formed, collecting every
// problem so the caller can fix them in one round trip.
func (r *IssueRequest) Validate() error {
	if r == nil {
		return pkgerrors.New(pkgerrors.CodeBadRequest, "request is required")
	}
	var details []string
	if len(r.VC) == 0 {
		details = append(details, "vc is required")
	} else if !json.Valid(r.VC) {
		details = append(details, "vc must be valid JSON")
	}
	if r.Owner == "" {
		details = append(details, "owner is required")
	} else if _, err := domain.ParseDID(r.Owner); err != nil {
		details = append(details, "owner must be a DID")
	}
	if r.Aud == "" {
		details = append(details, "aud is required")
	} else if _, err := domain.ParseDID(r.Aud); err != nil {
		details = append(details, "aud must be a DID")
	}
	if r.CVType == "" {
		details = append(details, "cvType is required")
	}
	if len(details) > 0 {
		return pkgerrors.NewWithDetails(pkgerrors.CodeValidation, "invalid issue request", details)
	}
	return nil
}

// ToCommand converts a validated request into the service-level command.
func (r *IssueRequest) ToCommand() (models.IssueCommand, error) {
	owner, err := domain.ParseDID(r.Owner)
	if err != nil {
		return models.IssueCommand{}, err
	}
	aud, err := domain.ParseDID(r.Aud)
	if err != nil {
		return models.IssueCommand{}, err
	}
	return models.IssueCommand{
		Body:           []byte(r.VC),
		Owner:          owner,
		Audience:       aud,
		CredentialType: r.CVType,
	}, nil
}
