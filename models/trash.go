package models

import "time"

// PurgeReport summarizes one pass of the tombstone purge.
type PurgeReport struct {
	Cutoff  time.Time `json:"cutoff"`
	Scanned int       `json:"scanned"`
	Purged  int       `json:"purged"`
	Failed  int       `json:"failed"`
}
