package models

import "time"

// Vote is the record of one accepted ballot. Immutable once written;
// the store enforces at most one per IDHash.
type Vote struct {
	IDHash     string
	Choice     string
	SourceAddr string
	CastAt     time.Time
	Token      string
}
