package indexer

import (
	"context"
	"time"

	"github.com/calehh/loanpool-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/pkg/errors"
)

// ChainClient is the part of the cometbft RPC client the indexer polls.
type ChainClient interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
}

type eventHandler func(tx *gorm.DB, ev types.Event, height uint64) error

// ChainIndexer projects loan pool events of finalized blocks into sqlite.
type ChainIndexer struct {
	logger   cmtlog.Logger
	db       *gorm.DB
	cli      ChainClient
	Height   int64
	handlers map[string]eventHandler
}

func OpenDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open indexer db %s", dbPath)
	}
	if err := db.AutoMigrate(&Height{}, &Proposal{}, &Vote{}, &Milestone{}, &CommitteeMember{}, &Transfer{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewChainIndexer(logger cmtlog.Logger, db *gorm.DB, cli ChainClient) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	c := &ChainIndexer{
		logger: logger.With("module", "indexer"),
		db:     db,
		cli:    cli,
		Height: int64(h.Height + 1),
	}
	c.handlers = map[string]eventHandler{
		types.EventProposalSubmittedType:  c.handleProposalSubmitted,
		types.EventBondReservedType:       c.handleBond,
		types.EventBondReleasedType:       c.handleBond,
		types.EventBondSlashedType:        c.handleBond,
		types.EventVoteCastType:           c.handleVoteCast,
		types.EventProposalApprovedType:   c.handleProposalApproved,
		types.EventProposalRejectedType:   c.handleProposalRejected,
		types.EventEscrowFundedType:       c.handleEscrow,
		types.EventEscrowForfeitedType:    c.handleEscrow,
		types.EventProposalCompletedType:  c.handleEscrow,
		types.EventMilestoneSubmittedType: c.handleMilestone,
		types.EventMilestonePaidType:      c.handleMilestone,
		types.EventReceiptMintedType:      c.handleReceiptMinted,
		types.EventProposalWithdrawnType:  c.handleProposalClosed,
		types.EventProposalDeletedType:    c.handleProposalClosed,
		types.EventCommitteeAddedType:     c.handleCommittee,
		types.EventCommitteeRemovedType:   c.handleCommittee,
		types.EventTransferType:           c.handleTransfer,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

// Start polls the chain every interval until ctx is cancelled.
func (c *ChainIndexer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

// Sync indexes every block up to the latest height reported by the node.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	status, err := c.cli.Status(ctx)
	if err != nil {
		return errors.Wrap(err, "get status")
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = c.indexBlock(ctx, c.Height); err != nil {
			return err
		}
		c.Height++
	}
	return nil
}

// indexBlock applies one block in a single sqlite transaction together with
// the height marker, so a crash never indexes a block twice.
func (c *ChainIndexer) indexBlock(ctx context.Context, height int64) error {
	res, err := c.cli.BlockResults(ctx, &height)
	if err != nil {
		return errors.Wrapf(err, "get block results %d", height)
	}
	events := make([]abci.Event, 0)
	for _, r := range res.TxsResults {
		if r == nil || r.Code != 0 {
			continue
		}
		events = append(events, r.Events...)
	}
	events = append(events, res.FinalizeBlockEvents...)

	tx := c.db.Begin()
	for _, event := range events {
		if err = c.handleEvent(tx, event, uint64(height)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "index %s at %d", event.Type, height)
		}
	}
	if err = tx.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return err
	}
	if len(events) > 0 {
		c.logger.Info("indexed block", "height", height, "events", len(events))
	}
	return nil
}

func (c *ChainIndexer) handleEvent(tx *gorm.DB, event abci.Event, height uint64) error {
	h, ok := c.handlers[event.Type]
	if !ok {
		return nil
	}
	ev, err := types.DecodeEvent(event)
	if err != nil {
		return err
	}
	return h(tx, ev, height)
}

func loadProposal(tx *gorm.DB, id uint64) (*Proposal, error) {
	var p Proposal
	if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, errors.Wrapf(err, "proposal %d", id)
	}
	return &p, nil
}

func updateProposal(tx *gorm.DB, id uint64, fn func(p *Proposal)) error {
	p, err := loadProposal(tx, id)
	if err != nil {
		return err
	}
	fn(p)
	return tx.Save(p).Error
}

func (c *ChainIndexer) handleProposalSubmitted(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventProposalSubmitted)
	p := Proposal{
		Id:             e.Proposal,
		Proposer:       e.Proposer.Hex(),
		Amount:         e.Amount,
		MilestoneCount: e.Milestones,
		State:          types.ProposalStateSubmitted.String(),
		Deadline:       e.Deadline,
		SubmitHeight:   height,
	}
	return tx.Save(&p).Error
}

func (c *ChainIndexer) handleBond(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventBond)
	return updateProposal(tx, e.Proposal, func(p *Proposal) {
		p.Bond = e.Bond
		p.BondAmount = e.Amount
		switch e.Type {
		case types.EventBondReservedType:
			p.BondState = types.BondStateHeld.String()
		case types.EventBondReleasedType:
			p.BondState = types.BondStateReleased.String()
		case types.EventBondSlashedType:
			p.BondState = types.BondStateSlashed.String()
		}
	})
}

func (c *ChainIndexer) handleVoteCast(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventVoteCast)
	var v Vote
	err := tx.Where("proposal = ? AND voter = ?", e.Proposal, e.Voter.Hex()).First(&v).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	v.Proposal = e.Proposal
	v.Voter = e.Voter.Hex()
	v.Aye = e.Aye
	v.Height = height
	if err = tx.Save(&v).Error; err != nil {
		return err
	}
	return updateProposal(tx, e.Proposal, func(p *Proposal) {
		p.Ayes = e.Ayes
		p.Nays = e.Nays
	})
}

func (c *ChainIndexer) handleProposalApproved(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventProposalApproved)
	return updateProposal(tx, e.Proposal, func(p *Proposal) {
		p.State = types.ProposalStateApproved.String()
		p.SettleHeight = height
	})
}

func (c *ChainIndexer) handleProposalRejected(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventProposalRejected)
	return updateProposal(tx, e.Proposal, func(p *Proposal) {
		p.State = types.ProposalStateRejected.String()
		p.RejectReason = e.Reason
		p.SettleHeight = height
	})
}

func (c *ChainIndexer) handleEscrow(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventEscrow)
	err := updateProposal(tx, e.Proposal, func(p *Proposal) {
		switch e.Type {
		case types.EventEscrowFundedType:
			p.State = types.ProposalStateEscrowed.String()
			p.Escrowed = e.Amount
		case types.EventEscrowForfeitedType:
			p.State = types.ProposalStateForfeited.String()
		case types.EventProposalCompletedType:
			p.State = types.ProposalStateCompleted.String()
		}
	})
	if err != nil || e.Type != types.EventEscrowForfeitedType {
		return err
	}
	return tx.Model(&Milestone{}).
		Where("proposal = ? AND state <> ?", e.Proposal, types.MilestoneStatePaid.String()).
		Update("state", types.MilestoneStateVoided.String()).Error
}

func (c *ChainIndexer) handleMilestone(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventMilestone)
	var m Milestone
	err := tx.Where("proposal = ? AND milestone_index = ?", e.Proposal, e.Index).First(&m).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	m.Proposal = e.Proposal
	m.Index = e.Index
	m.Amount = e.Amount
	paid := e.Type == types.EventMilestonePaidType
	if paid {
		m.State = types.MilestoneStatePaid.String()
		m.PaidHeight = height
	} else {
		m.State = types.MilestoneStateSubmitted.String()
		m.SubmitHeight = height
	}
	if err = tx.Save(&m).Error; err != nil || !paid {
		return err
	}
	return updateProposal(tx, e.Proposal, func(p *Proposal) {
		p.Paid += e.Amount
		if p.Paid < p.Amount {
			p.State = types.ProposalStatePartiallyPaid.String()
		}
	})
}

func (c *ChainIndexer) handleReceiptMinted(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventReceiptMinted)
	return tx.Model(&Milestone{}).
		Where("proposal = ? AND milestone_index = ?", e.Collection, e.Item).
		Update("receipt", true).Error
}

func (c *ChainIndexer) handleProposalClosed(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventProposalClosed)
	return updateProposal(tx, e.Proposal, func(p *Proposal) {
		if e.Type == types.EventProposalDeletedType {
			p.Deleted = true
			return
		}
		p.State = e.State
		p.SettleHeight = height
	})
}

func (c *ChainIndexer) handleCommittee(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventCommittee)
	return tx.Save(&CommitteeMember{
		Address: e.Member.Hex(),
		Active:  e.Added,
		Version: e.Version,
		Height:  height,
	}).Error
}

func (c *ChainIndexer) handleTransfer(tx *gorm.DB, ev types.Event, height uint64) error {
	e := ev.(*types.EventTransfer)
	return tx.Create(&Transfer{
		FromAddress: e.From.Hex(),
		ToAddress:   e.To.Hex(),
		Amount:      e.Amount,
		Height:      height,
	}).Error
}
