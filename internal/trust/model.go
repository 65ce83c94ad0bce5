// Package trust maintains directed delegation edges between wallets and
// resolves which wallets a wallet may act upon.
package trust

import "time"

// Type is the permission an edge grants.
type Type string

const (
	TypeSend   Type = "send"
	TypeManage Type = "manage"
	TypeDeduct Type = "deduct"
)

// RequestType is the direction-specific form a trust request takes. Each
// request type implies one Type.
type RequestType string

const (
	RequestSend    RequestType = "send"
	RequestReceive RequestType = "receive"
	RequestManage  RequestType = "manage"
	RequestYield   RequestType = "yield"
	RequestDeduct  RequestType = "deduct"
	RequestRelease RequestType = "release"
)

// State is the position of an edge in its approval workflow.
type State string

const (
	StateRequested State = "requested"
	StateTrusted   State = "trusted"
	StateRejected  State = "rejected"
	StateRevoked   State = "revoked"
)

// Trust is a directed edge from an actor wallet to a target wallet.
type Trust struct {
	ID                 string
	ActorWalletID      string
	TargetWalletID     string
	OriginatorWalletID string
	Type               Type
	RequestType        RequestType
	State              State
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Involves reports whether walletID is the actor or the target of t.
func (t Trust) Involves(walletID string) bool {
	return t.ActorWalletID == walletID || t.TargetWalletID == walletID
}

func (t Type) IsValid() bool {
	switch t {
	case TypeSend, TypeManage, TypeDeduct:
		return true
	}
	return false
}

func (r RequestType) IsValid() bool {
	_, ok := requestTypes[r]
	return ok
}

var requestTypes = map[RequestType]Type{
	RequestSend:    TypeSend,
	RequestReceive: TypeSend,
	RequestManage:  TypeManage,
	RequestYield:   TypeManage,
	RequestDeduct:  TypeDeduct,
	RequestRelease: TypeDeduct,
}

// Type returns the permission type implied by r.
func (r RequestType) Type() Type {
	return requestTypes[r]
}

func (s State) IsValid() bool {
	switch s {
	case StateRequested, StateTrusted, StateRejected, StateRevoked:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateRequested: {StateTrusted, StateRejected},
	StateTrusted:   {StateRevoked},
}

// CanTransition reports whether an edge in state s may move to next.
// Rejected and revoked are terminal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}
