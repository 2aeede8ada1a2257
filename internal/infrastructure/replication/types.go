package replication

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	OperationSave   = "save"
	OperationDelete = "delete"
)

// Item is a session write that failed against one backend and must be
// replayed once that backend is reachable again. Data carries the full
// session record for save operations and stays empty for deletes.
type Item struct {
	ID        string          `json:"id"`
	Backend   string          `json:"backend"`
	SessionID string          `json:"session_id"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Operation == "" {
		i.Operation = OperationSave
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
