package monitor

import "time"

type Status struct {
	TaskStore  bool      `json:"task_store"`
	Redis      bool      `json:"redis"`
	Outbox     bool      `json:"outbox"`
	OutboxSize int       `json:"outbox_size"`
	LastCheck  time.Time `json:"last_check"`
}
