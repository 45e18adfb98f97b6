package types

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	EventProposalSubmittedType  = "proposal_submitted"
	EventBondReservedType       = "bond_reserved"
	EventBondReleasedType       = "bond_released"
	EventBondSlashedType        = "bond_slashed"
	EventVoteCastType           = "vote_cast"
	EventProposalApprovedType   = "proposal_approved"
	EventProposalRejectedType   = "proposal_rejected"
	EventEscrowFundedType       = "escrow_funded"
	EventMilestoneSubmittedType = "milestone_submitted"
	EventMilestonePaidType      = "milestone_paid"
	EventReceiptMintedType      = "receipt_minted"
	EventProposalCompletedType  = "proposal_completed"
	EventEscrowForfeitedType    = "escrow_forfeited"
	EventProposalWithdrawnType  = "proposal_withdrawn"
	EventProposalDeletedType    = "proposal_deleted"
	EventCommitteeAddedType     = "committee_member_added"
	EventCommitteeRemovedType   = "committee_member_removed"
	EventTransferType           = "transfer"
)

const (
	RejectReasonVotes   = "votes"
	RejectReasonOrigin  = "origin"
	RejectReasonTimeout = "timeout"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Event is emitted by a successful loan pool operation and delivered in FinalizeBlock results.
type Event interface {
	EventType() string
	Encode() abci.Event
}

type EventProposalSubmitted struct {
	Proposal   uint64         `json:"proposal"`
	Proposer   common.Address `json:"proposer"`
	Amount     uint64         `json:"amount"`
	Milestones uint32         `json:"milestones"`
	Deadline   uint64         `json:"deadline"`
}

func (e *EventProposalSubmitted) EventType() string { return EventProposalSubmittedType }

func (e *EventProposalSubmitted) Encode() abci.Event {
	return abci.Event{
		Type: e.EventType(),
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "proposer", Value: e.Proposer.Hex(), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", e.Amount), Index: false},
			{Key: "milestones", Value: fmt.Sprintf("%v", e.Milestones), Index: false},
			{Key: "deadline", Value: fmt.Sprintf("%v", e.Deadline), Index: false},
		},
	}
}

// EventBond covers reservation, release and slashing of a proposal bond.
type EventBond struct {
	Type     string         `json:"type"`
	Bond     uint64         `json:"bond"`
	Proposal uint64         `json:"proposal"`
	Owner    common.Address `json:"owner"`
	Amount   uint64         `json:"amount"`
}

func (e *EventBond) EventType() string { return e.Type }

func (e *EventBond) Encode() abci.Event {
	return abci.Event{
		Type: e.Type,
		Attributes: []abci.EventAttribute{
			{Key: "bond", Value: fmt.Sprintf("%v", e.Bond), Index: true},
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "owner", Value: e.Owner.Hex(), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", e.Amount), Index: false},
		},
	}
}

type EventVoteCast struct {
	Proposal uint64         `json:"proposal"`
	Voter    common.Address `json:"voter"`
	Aye      bool           `json:"aye"`
	Ayes     uint32         `json:"ayes"`
	Nays     uint32         `json:"nays"`
}

func (e *EventVoteCast) EventType() string { return EventVoteCastType }

func (e *EventVoteCast) Encode() abci.Event {
	return abci.Event{
		Type: e.EventType(),
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "voter", Value: e.Voter.Hex(), Index: true},
			{Key: "aye", Value: fmt.Sprintf("%v", e.Aye), Index: false},
			{Key: "ayes", Value: fmt.Sprintf("%v", e.Ayes), Index: false},
			{Key: "nays", Value: fmt.Sprintf("%v", e.Nays), Index: false},
		},
	}
}

type EventProposalApproved struct {
	Proposal uint64 `json:"proposal"`
	ByOrigin bool   `json:"byOrigin"`
}

func (e *EventProposalApproved) EventType() string { return EventProposalApprovedType }

func (e *EventProposalApproved) Encode() abci.Event {
	return abci.Event{
		Type: e.EventType(),
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "byOrigin", Value: fmt.Sprintf("%v", e.ByOrigin), Index: false},
		},
	}
}

type EventProposalRejected struct {
	Proposal uint64 `json:"proposal"`
	Reason   string `json:"reason"`
}

func (e *EventProposalRejected) EventType() string { return EventProposalRejectedType }

func (e *EventProposalRejected) Encode() abci.Event {
	return abci.Event{
		Type: e.EventType(),
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "reason", Value: e.Reason, Index: false},
		},
	}
}

// EventEscrow reports funding, forfeiture and completion of a loan escrow.
// For completion Amount carries the residual returned to the pool.
type EventEscrow struct {
	Type     string `json:"type"`
	Proposal uint64 `json:"proposal"`
	Amount   uint64 `json:"amount"`
}

func (e *EventEscrow) EventType() string { return e.Type }

func (e *EventEscrow) Encode() abci.Event {
	return abci.Event{
		Type: e.Type,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", e.Amount), Index: false},
		},
	}
}

type EventMilestone struct {
	Type        string         `json:"type"`
	Proposal    uint64         `json:"proposal"`
	Index       uint32         `json:"index"`
	Amount      uint64         `json:"amount"`
	Beneficiary common.Address `json:"beneficiary"`
}

func (e *EventMilestone) EventType() string { return e.Type }

func (e *EventMilestone) Encode() abci.Event {
	return abci.Event{
		Type: e.Type,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "index", Value: fmt.Sprintf("%v", e.Index), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", e.Amount), Index: false},
			{Key: "beneficiary", Value: e.Beneficiary.Hex(), Index: false},
		},
	}
}

type EventReceiptMinted struct {
	Owner      common.Address `json:"owner"`
	Collection uint64         `json:"collection"`
	Item       uint32         `json:"item"`
}

func (e *EventReceiptMinted) EventType() string { return EventReceiptMintedType }

func (e *EventReceiptMinted) Encode() abci.Event {
	return abci.Event{
		Type: e.EventType(),
		Attributes: []abci.EventAttribute{
			{Key: "owner", Value: e.Owner.Hex(), Index: true},
			{Key: "collection", Value: fmt.Sprintf("%v", e.Collection), Index: true},
			{Key: "item", Value: fmt.Sprintf("%v", e.Item), Index: false},
		},
	}
}

// EventProposalClosed covers withdrawal by the proposer and deletion by the delete origin.
type EventProposalClosed struct {
	Type     string `json:"type"`
	Proposal uint64 `json:"proposal"`
	State    string `json:"state"`
}

func (e *EventProposalClosed) EventType() string { return e.Type }

func (e *EventProposalClosed) Encode() abci.Event {
	return abci.Event{
		Type: e.Type,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", e.Proposal), Index: true},
			{Key: "state", Value: e.State, Index: false},
		},
	}
}

type EventCommittee struct {
	Member  common.Address `json:"member"`
	Added   bool           `json:"added"`
	Version uint64         `json:"version"`
}

func (e *EventCommittee) EventType() string {
	if e.Added {
		return EventCommitteeAddedType
	}
	return EventCommitteeRemovedType
}

func (e *EventCommittee) Encode() abci.Event {
	return abci.Event{
		Type: e.EventType(),
		Attributes: []abci.EventAttribute{
			{Key: "member", Value: e.Member.Hex(), Index: true},
			{Key: "version", Value: fmt.Sprintf("%v", e.Version), Index: false},
		},
	}
}

type EventTransfer struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

func (e *EventTransfer) EventType() string { return EventTransferType }

func (e *EventTransfer) Encode() abci.Event {
	return abci.Event{
		Type: e.EventType(),
		Attributes: []abci.EventAttribute{
			{Key: "from", Value: e.From.Hex(), Index: true},
			{Key: "to", Value: e.To.Hex(), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", e.Amount), Index: false},
		},
	}
}

func EncodeEvents(events []Event) []abci.Event {
	out := make([]abci.Event, 0, len(events))
	for _, e := range events {
		out = append(out, e.Encode())
	}
	return out
}

type attrReader struct {
	attrs map[string]string
	err   error
}

func newAttrReader(originEvent abci.Event) *attrReader {
	r := &attrReader{attrs: make(map[string]string, len(originEvent.Attributes))}
	for _, v := range originEvent.Attributes {
		r.attrs[v.Key] = v.Value
	}
	return r
}

func (r *attrReader) uint64(key string) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(r.attrs[key], 10, 64)
	if err != nil {
		r.err = errors.Wrapf(err, "attribute %s", key)
	}
	return v
}

func (r *attrReader) uint32(key string) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(r.attrs[key], 10, 32)
	if err != nil {
		r.err = errors.Wrapf(err, "attribute %s", key)
	}
	return uint32(v)
}

func (r *attrReader) bool(key string) bool {
	if r.err != nil {
		return false
	}
	v, err := strconv.ParseBool(r.attrs[key])
	if err != nil {
		r.err = errors.Wrapf(err, "attribute %s", key)
	}
	return v
}

func (r *attrReader) address(key string) common.Address {
	if r.err != nil {
		return common.Address{}
	}
	v := r.attrs[key]
	if !common.IsHexAddress(v) {
		r.err = fmt.Errorf("attribute %s: invalid address %q", key, v)
		return common.Address{}
	}
	return common.HexToAddress(v)
}

// DecodeEvent rebuilds a loan pool event from its abci form. Events of other
// applications return ErrUnknownEvent.
func DecodeEvent(originEvent abci.Event) (Event, error) {
	r := newAttrReader(originEvent)
	var event Event
	switch originEvent.Type {
	case EventProposalSubmittedType:
		event = &EventProposalSubmitted{
			Proposal:   r.uint64("proposal"),
			Proposer:   r.address("proposer"),
			Amount:     r.uint64("amount"),
			Milestones: r.uint32("milestones"),
			Deadline:   r.uint64("deadline"),
		}
	case EventBondReservedType, EventBondReleasedType, EventBondSlashedType:
		event = &EventBond{
			Type:     originEvent.Type,
			Bond:     r.uint64("bond"),
			Proposal: r.uint64("proposal"),
			Owner:    r.address("owner"),
			Amount:   r.uint64("amount"),
		}
	case EventVoteCastType:
		event = &EventVoteCast{
			Proposal: r.uint64("proposal"),
			Voter:    r.address("voter"),
			Aye:      r.bool("aye"),
			Ayes:     r.uint32("ayes"),
			Nays:     r.uint32("nays"),
		}
	case EventProposalApprovedType:
		event = &EventProposalApproved{
			Proposal: r.uint64("proposal"),
			ByOrigin: r.bool("byOrigin"),
		}
	case EventProposalRejectedType:
		event = &EventProposalRejected{
			Proposal: r.uint64("proposal"),
			Reason:   r.attrs["reason"],
		}
	case EventEscrowFundedType, EventEscrowForfeitedType, EventProposalCompletedType:
		event = &EventEscrow{
			Type:     originEvent.Type,
			Proposal: r.uint64("proposal"),
			Amount:   r.uint64("amount"),
		}
	case EventMilestoneSubmittedType, EventMilestonePaidType:
		event = &EventMilestone{
			Type:        originEvent.Type,
			Proposal:    r.uint64("proposal"),
			Index:       r.uint32("index"),
			Amount:      r.uint64("amount"),
			Beneficiary: r.address("beneficiary"),
		}
	case EventReceiptMintedType:
		event = &EventReceiptMinted{
			Owner:      r.address("owner"),
			Collection: r.uint64("collection"),
			Item:       r.uint32("item"),
		}
	case EventProposalWithdrawnType, EventProposalDeletedType:
		event = &EventProposalClosed{
			Type:     originEvent.Type,
			Proposal: r.uint64("proposal"),
			State:    r.attrs["state"],
		}
	case EventCommitteeAddedType, EventCommitteeRemovedType:
		event = &EventCommittee{
			Member:  r.address("member"),
			Added:   originEvent.Type == EventCommitteeAddedType,
			Version: r.uint64("version"),
		}
	case EventTransferType:
		event = &EventTransfer{
			From:   r.address("from"),
			To:     r.address("to"),
			Amount: r.uint64("amount"),
		}
	default:
		return nil, ErrUnknownEvent
	}
	if r.err != nil {
		return nil, errors.Wrapf(r.err, "decode %s", originEvent.Type)
	}
	return event, nil
}
