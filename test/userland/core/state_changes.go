package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

const ChannelOpenedChangeType = statemachine.ChangeTypeString("ChannelOpened")
const DepositObservedChangeType = statemachine.ChangeTypeString("DepositObserved")
const TransferReceivedChangeType = statemachine.ChangeTypeString("TransferReceived")
const ChannelClosedChangeType = statemachine.ChangeTypeString("ChannelClosed")

// ChannelStateChange is the contract for all state changes of the channel
// domain. OccurredAt is part of the recorded fact, so replaying a change
// reproduces the original occurrence time instead of reading the clock.
type ChannelStateChange interface {
	statemachine.StateChange
	HasOccurredAt() time.Time
}

/***** ChannelOpened *****/

type ChannelOpened struct {
	ChannelID      ChannelIDString
	OurDeposit     uint64
	PartnerDeposit uint64
	OccurredAt     time.Time
}

func BuildChannelOpened(channelID uuid.UUID, ourDeposit uint64, partnerDeposit uint64, occurredAt time.Time) ChannelOpened {
	return ChannelOpened{
		ChannelID:      channelID.String(),
		OurDeposit:     ourDeposit,
		PartnerDeposit: partnerDeposit,
		OccurredAt:     occurredAt.UTC(),
	}
}

func (c ChannelOpened) ChangeType() statemachine.ChangeTypeString {
	return ChannelOpenedChangeType
}

func (c ChannelOpened) HasOccurredAt() time.Time {
	return c.OccurredAt
}

/***** DepositObserved *****/

type DepositObserved struct {
	ChannelID  ChannelIDString
	Amount     uint64
	OccurredAt time.Time
}

func BuildDepositObserved(channelID uuid.UUID, amount uint64, occurredAt time.Time) DepositObserved {
	return DepositObserved{
		ChannelID:  channelID.String(),
		Amount:     amount,
		OccurredAt: occurredAt.UTC(),
	}
}

func (c DepositObserved) ChangeType() statemachine.ChangeTypeString {
	return DepositObservedChangeType
}

func (c DepositObserved) HasOccurredAt() time.Time {
	return c.OccurredAt
}

/***** TransferReceived *****/

type TransferReceived struct {
	ChannelID  ChannelIDString
	TransferID TransferIDString
	Amount     uint64
	OccurredAt time.Time
}

func BuildTransferReceived(channelID uuid.UUID, transferID uuid.UUID, amount uint64, occurredAt time.Time) TransferReceived {
	return TransferReceived{
		ChannelID:  channelID.String(),
		TransferID: transferID.String(),
		Amount:     amount,
		OccurredAt: occurredAt.UTC(),
	}
}

func (c TransferReceived) ChangeType() statemachine.ChangeTypeString {
	return TransferReceivedChangeType
}

func (c TransferReceived) HasOccurredAt() time.Time {
	return c.OccurredAt
}

/***** ChannelClosed *****/

type ChannelClosed struct {
	ChannelID  ChannelIDString
	OccurredAt time.Time
}

func BuildChannelClosed(channelID uuid.UUID, occurredAt time.Time) ChannelClosed {
	return ChannelClosed{
		ChannelID:  channelID.String(),
		OccurredAt: occurredAt.UTC(),
	}
}

func (c ChannelClosed) ChangeType() statemachine.ChangeTypeString {
	return ChannelClosedChangeType
}

func (c ChannelClosed) HasOccurredAt() time.Time {
	return c.OccurredAt
}
