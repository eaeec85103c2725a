package domain

import "time"

// LayerEvent announces that a cache entry was written.
type LayerEvent struct {
	RunID   string    `json:"run_id"`
	Dataset DatasetID `json:"dataset"`
	Status  string    `json:"status"`
	Path    string    `json:"path"`
	Cells   int       `json:"cells"`
	BuiltAt time.Time `json:"built_at"`
}
