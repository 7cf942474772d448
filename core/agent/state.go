package agent

import (
	"fmt"

	"github.com/dmitrymomot/zonecast/core/broadcast"
)

// State is a step of the agent lifecycle. States only move forward.
type State uint8

const (
	StateCreated State = iota
	StateInitializing
	StateInitialized
	StateStarted
	StateShuttingDown
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Role selects which engines an agent runs.
type Role uint8

const (
	RolePublisher Role = iota + 1
	RoleSubscriber
)

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// ShutdownFlags returns the provisioning flags used when the role leaves its zones.
func (r Role) ShutdownFlags() broadcast.ProvisioningFlags {
	if r == RoleSubscriber {
		return broadcast.FlagUnsubscribe
	}
	return broadcast.FlagUnregister | broadcast.FlagUnprovide
}

// rollbackFlags are used to undo a partially connected zone set.
func (r Role) rollbackFlags() broadcast.ProvisioningFlags {
	if r == RoleSubscriber {
		return broadcast.FlagUnsubscribe
	}
	return broadcast.FlagUnregister
}
