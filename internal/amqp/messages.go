package amqp

import (
	"encoding/json"
	"time"

	"pmanager/internal/core"
)

// LedgerEventMessage announces a recorded ledger event. It carries ids only;
// the consumer re-reads the event from the database.
type LedgerEventMessage struct {
	EventID   int64             `json:"event_id"`
	EntryID   int64             `json:"entry_id"`
	AccountID int64             `json:"account_id"`
	Action    core.LedgerAction `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewLedgerEventMessage(ev core.LedgerEvent) *LedgerEventMessage {
	return &LedgerEventMessage{
		EventID:   ev.ID,
		EntryID:   ev.EntryID,
		AccountID: ev.AccountID,
		Action:    ev.Action,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
