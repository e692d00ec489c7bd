package models

type ActionKind string

const (
	ActionEarnTokens   ActionKind = "earnTokens"
	ActionRedeemReward ActionKind = "redeemReward"
	ActionScanQR       ActionKind = "scanQR"
	ActionBuyItem      ActionKind = "buyItem"
)

// PendingAction is a deferred user intent captured when an operation
// needed a wallet that was not connected yet. At most one is held at a
// time; a newer wallet-gated action overwrites an unconsumed one, and a
// queued action runs exactly once after the wallet connects.
type PendingAction struct {
	Kind    ActionKind `json:"kind"`
	Payload string     `json:"payload"`
}
