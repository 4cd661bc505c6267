package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	KindText     = "text"
	KindUserText = "user_text"
	KindCard     = "card"
)

// MaxRetries caps redelivery attempts before a notification is dropped.
const MaxRetries = 5

// Item is one notification that could not be delivered and should be retried
// once the chat platform is reachable again.
type Item struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Target    string          `json:"target"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
