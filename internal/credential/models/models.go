package models

import (
	"time"

	"tracevault/internal/blob"
	domain "tracevault/pkg/domain"
)

// Record binds an opaque credential key to everything retrieval needs:
// where the body lives, who owns it, and which audience may unlock it.
// Created once at issuance and immutable thereafter; the base design
// never deletes records (retention is an external policy concern).
type Record struct {
	Key            domain.CredentialKey `json:"-"`
	ContentID      blob.ContentID       `json:"cid"`
	Owner          domain.DID           `json:"owner"`
	Audience       domain.DID           `json:"aud"`
	CredentialType string               `json:"cvType"`
	IssuedAt       time.Time            `json:"-"`
}

// IssueCommand is the service-level input for storing a new credential.
type IssueCommand struct {
	Body           []byte
	Owner          domain.DID
	Audience       domain.DID
	CredentialType string
}

// RetrieveResult carries the released body together with the metadata the
// transport layer may expose (the type, never internal identifiers).
type RetrieveResult struct {
	Body           []byte
	CredentialType string
}
