package monitor

import "time"

type Status struct {
	PostgreSQL    bool      `json:"postgresql"`
	Redis         bool      `json:"redis"`
	Queue         bool      `json:"queue"`
	PendingWrites int       `json:"pending_writes"`
	LastCheck     time.Time `json:"last_check"`
}
