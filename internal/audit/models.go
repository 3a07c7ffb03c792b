package audit

import (
	"time"

	domain "tracevault/pkg/domain"
)

// Event records one successful credential release. Created exactly once
// per retrieval, immutable, append-only. Keep it transport-agnostic so
// stores and the chained log can share it.
type Event struct {
	// Owner partitions the log: the credential owner this event belongs to.
	Owner domain.DID `json:"-"`

	// Operator is the audience that presented the verified token.
	Operator domain.DID `json:"operator"`

	// TargetKey is the opaque key of the credential that was released.
	TargetKey string `json:"targetKey"`

	// CredentialType mirrors the type recorded at issuance.
	CredentialType string `json:"cvType"`

	// ClientPlatform is a coarse fingerprint of the retrieving client
	// (browser/os class), never raw user-agent strings.
	ClientPlatform string `json:"clientPlatform,omitempty"`

	// RequestID correlates the event with transport logs.
	RequestID string `json:"requestId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
