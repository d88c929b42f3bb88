package events

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"storefront-service/internal/models"
)

const subjectImportCommitted = "import.committed"

// ImportCommittedEvent is the audit-trail payload published after a commit
type ImportCommittedEvent struct {
	EventID        string    `json:"eventId"`
	SessionID      string    `json:"sessionId"`
	MerchantID     string    `json:"merchantId"`
	ActorID        string    `json:"actorId"`
	InsertedCount  int       `json:"insertedCount"`
	UpdatedCount   int       `json:"updatedCount"`
	FailedCount    int       `json:"failedCount"`
	UploadedImages int       `json:"uploadedImages"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Publisher emits import lifecycle events over NATS
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS using NATS_URL
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("storefront-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "import-events"),
	}, nil
}

// PublishImportCommitted publishes an import.committed event. Event loss is
// logged, never surfaced: the commit already happened.
func (p *Publisher) PublishImportCommitted(sessionID, merchantID, actorID string, result *models.CommitResult) {
	event := ImportCommittedEvent{
		EventID:        uuid.New().String(),
		SessionID:      sessionID,
		MerchantID:     merchantID,
		ActorID:        actorID,
		InsertedCount:  result.InsertedCount,
		UpdatedCount:   result.UpdatedCount,
		FailedCount:    result.FailedCount,
		UploadedImages: result.UploadedImages,
		OccurredAt:     time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("failed to encode import.committed event")
		return
	}
	if err := p.conn.Publish(subjectImportCommitted, payload); err != nil {
		p.logger.WithError(err).WithField("session_id", sessionID).Error("failed to publish import.committed event")
		return
	}
	p.logger.WithField("session_id", sessionID).Debug("published import.committed event")
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}
