package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReportSyncMessage asks the export worker to push one archived report.
// It carries only the archive ID and version; the worker loads the archive
// from storage and drops messages older than the stored version.
type ReportSyncMessage struct {
	MessageID string    `json:"message_id"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportSyncMessage creates a message with a fresh message ID.
func NewReportSyncMessage(id, version int64) *ReportSyncMessage {
	return &ReportSyncMessage{
		MessageID: uuid.NewString(),
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportSyncMessageFromJSON decodes and sanity-checks a message.
func ReportSyncMessageFromJSON(data []byte) (*ReportSyncMessage, error) {
	var msg ReportSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 || msg.Version <= 0 {
		return nil, errors.New("report sync message: id and version must be positive")
	}
	return &msg, nil
}
