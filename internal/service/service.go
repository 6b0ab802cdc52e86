// Package service implements the job lifecycle controller and the
// payment ledger on top of a transactional store. All state machine
// rules live in the domain package; this layer loads records, applies
// transitions, persists them with optimistic locking and fans out
// notifications after commit.
package service

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleClient Role = "client"
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated caller, resolved by the API layer.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) Admin() bool { return a.Role == RoleAdmin }
