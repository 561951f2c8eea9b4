package worker

import (
	"encoding/json"

	"github.com/book-expert/logger"
	"github.com/book-expert/text-improver/internal/session"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var _ session.Observer = (*StatePublisher)(nil)

// StatePublisher publishes every session snapshot on a subject. All messages
// of one publisher share a workflow id.
type StatePublisher struct {
	natsConnection *nats.Conn
	subject        string
	workflowID     string
	log            *logger.Logger
}

// NewStatePublisher creates a StatePublisher.
func NewStatePublisher(natsConnection *nats.Conn, subject string, log *logger.Logger) *StatePublisher {
	return &StatePublisher{
		natsConnection: natsConnection,
		subject:        subject,
		workflowID:     uuid.NewString(),
		log:            log,
	}
}

// SessionChanged publishes state.
func (p *StatePublisher) SessionChanged(state session.State) {
	data, err := json.Marshal(newStateMessage(p.workflowID, state))
	if err != nil {
		p.log.Error("Failed to marshal session state: %v", err)

		return
	}

	err = p.natsConnection.Publish(p.subject, data)
	if err != nil {
		p.log.Error("Failed to publish session state on %s: %v", p.subject, err)
	}
}
