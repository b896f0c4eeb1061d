package core

import (
	"github.com/AntonStoeckl/deterministic-statemachine-go/statemachine"
)

const TransferAcceptedEventType = statemachine.EventTypeString("TransferAccepted")
const TransferRejectedEventType = statemachine.EventTypeString("TransferRejected")
const BalanceUpdatedEventType = statemachine.EventTypeString("BalanceUpdated")
const ChannelSettledEventType = statemachine.EventTypeString("ChannelSettled")

const RejectReasonInsufficientBalance = "insufficient partner balance"
const RejectReasonDuplicateTransfer = "duplicate transfer id"

/***** TransferAccepted *****/

type TransferAccepted struct {
	ChannelID  ChannelIDString
	TransferID TransferIDString
	Amount     uint64
}

func (e TransferAccepted) EventType() statemachine.EventTypeString {
	return TransferAcceptedEventType
}

/***** TransferRejected *****/

// TransferRejected is a domain-level rejection: an ordinary event produced by
// a successful dispatch, never an error.
type TransferRejected struct {
	ChannelID  ChannelIDString
	TransferID TransferIDString
	Amount     uint64
	Reason     string
}

func (e TransferRejected) EventType() statemachine.EventTypeString {
	return TransferRejectedEventType
}

/***** BalanceUpdated *****/

type BalanceUpdated struct {
	ChannelID      ChannelIDString
	OurBalance     uint64
	PartnerBalance uint64
}

func (e BalanceUpdated) EventType() statemachine.EventTypeString {
	return BalanceUpdatedEventType
}

/***** ChannelSettled *****/

type ChannelSettled struct {
	ChannelID           ChannelIDString
	FinalOurBalance     uint64
	FinalPartnerBalance uint64
}

func (e ChannelSettled) EventType() statemachine.EventTypeString {
	return ChannelSettledEventType
}
