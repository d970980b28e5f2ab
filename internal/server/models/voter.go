// Package models defines the persisted record types of the voting store.
package models

import "time"

// Voter is the identity record created at registration. IDHash is the
// primary key; the raw identifier is never stored. Voted only ever moves
// from false to true.
type Voter struct {
	IDHash      string
	Last4       string
	Token       string
	TokenExpiry time.Time
	Voted       bool
}
