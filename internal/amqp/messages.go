package amqp

import (
	"encoding/json"
	"time"
)

// ImportCompletedMessage tells downstream consumers that a statement file
// was stored. It carries identifiers only; consumers read the rows from the
// store.
type ImportCompletedMessage struct {
	ImportID   string    `json:"import_id"`
	SourcePath string    `json:"source_path"`
	SHA256     string    `json:"sha256"`
	RowCount   int       `json:"row_count"`
	Months     []string  `json:"months"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewImportCompletedMessage(importID, sourcePath, sha256 string, rowCount int, months []string) *ImportCompletedMessage {
	return &ImportCompletedMessage{
		ImportID:   importID,
		SourcePath: sourcePath,
		SHA256:     sha256,
		RowCount:   rowCount,
		Months:     months,
		Timestamp:  time.Now(),
	}
}

func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
