package types

import (
	"encoding/json"
	"time"
)

// SyncType identifies which pipeline produced a SyncHistory record.
type SyncType string

const (
	SyncTypePrices  SyncType = "prices"
	SyncTypeTrades  SyncType = "trades"
	SyncTypeCandles SyncType = "candles"
)

// SyncHistory is a write-once audit record for one sync cycle.
type SyncHistory struct {
	Date          time.Time `json:"date"`
	SyncType      SyncType  `json:"sync_type"`
	RecordsSynced int       `json:"records_synced"`
	// ExtraData holds per-instrument evaluation detail or per-pipeline counts.
	// The schema is per-call; consumers treat it as opaque JSON.
	ExtraData json.RawMessage `json:"extra_data"`
}
