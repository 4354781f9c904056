package models

import "time"

// SyncRun is a journal entry of one finished synchronization job.
type SyncRun struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Result     SyncResult `json:"result"`
}

// Download is a journal entry of one saved export asset.
type Download struct {
	ID       string     `json:"id"`
	Filename string     `json:"filename"`
	Path     string     `json:"path"`
	Export   ExportData `json:"export"`
	SavedAt  time.Time  `json:"saved_at"`
}
