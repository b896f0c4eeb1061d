package core

import (
	"maps"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

type ChannelIDString = string
type TransferIDString = string

const ChannelStateType = statemachine.StateTypeString("ChannelState")

type ChannelStatus string

const (
	ChannelStatusOpened ChannelStatus = "opened"
	ChannelStatusClosed ChannelStatus = "closed"
)

// ChannelState is the state of one payment channel between this node and a
// partner node. It is a value-semantic snapshot: the pending transfer map is
// the only non-scalar member and is cloned, never aliased.
type ChannelState struct {
	ChannelID        ChannelIDString
	OurBalance       uint64
	PartnerBalance   uint64
	Status           ChannelStatus
	PendingTransfers map[TransferIDString]uint64
}

func (s ChannelState) StateType() statemachine.StateTypeString {
	return ChannelStateType
}

func (s ChannelState) CloneState() statemachine.State {
	clone := s
	clone.PendingTransfers = maps.Clone(s.PendingTransfers)

	return clone
}
