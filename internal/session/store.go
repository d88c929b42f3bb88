package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"storefront-service/internal/models"
)

// Status is the lifecycle state of an import session. Transitions are
// one-directional: staged -> committed and staged -> expired; committed is
// terminal.
type Status string

const (
	StatusStaged    Status = "staged"
	StatusCommitted Status = "committed"
	StatusExpired   Status = "expired"
)

var (
	// ErrNotFound means the session id is unknown to the store
	ErrNotFound = errors.New("import session not found")
	// ErrExpired means the session outlived its TTL without being committed.
	// This is terminal, not retryable: the staged data is gone.
	ErrExpired = errors.New("import session expired")
	// ErrConflict means a status transition lost to a concurrent one,
	// typically a second commit against an already-committed session
	ErrConflict = errors.New("import session already transitioned")
	// ErrForbidden means the caller does not own the session
	ErrForbidden = errors.New("import session belongs to another user")
)

// Session pairs a staged validation result with its raw asset bundle while
// the merchant decides whether to commit.
type Session struct {
	ID             string                   `json:"id"`
	MerchantID     string                   `json:"merchantId"`
	OwnerUserID    string                   `json:"ownerUserId"`
	Status         Status                   `json:"status"`
	UpdateExisting bool                     `json:"updateExisting"`
	CreatedAt      time.Time                `json:"createdAt"`
	ExpiresAt      time.Time                `json:"expiresAt"`
	Validation     *models.ValidationResult `json:"validation"`
	ZipData        []byte                   `json:"zipData,omitempty"`
}

// New builds a staged session with a fresh id and the given TTL
func New(merchantID, ownerUserID string, validation *models.ValidationResult, zipData []byte, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.New().String(),
		MerchantID:  merchantID,
		OwnerUserID: ownerUserID,
		Status:      StatusStaged,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Validation:  validation,
		ZipData:     zipData,
	}
}

// Store stages import sessions between the parse and commit steps. The
// staged -> committed transition must be an atomic compare-and-set so two
// concurrent commits on one id yield exactly one success.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// TransitionStatus atomically moves a session from one status to
	// another. Returns ErrConflict when the current status is not `from`.
	TransitionStatus(ctx context.Context, id string, from, to Status) error
	Delete(ctx context.Context, id string) error
}

// CheckAccess enforces session ownership: an admin role bypasses it, any
// other caller must both own the session and act within its merchant scope.
func CheckAccess(sess *Session, userID, merchantID, role string) error {
	if role == "admin" {
		return nil
	}
	if sess.OwnerUserID != userID || sess.MerchantID != merchantID {
		return ErrForbidden
	}
	return nil
}
