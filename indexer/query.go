package indexer

import "github.com/jinzhu/gorm"

type ProposalFilter struct {
	Proposer string
	State    string
}

func (c *ChainIndexer) getProposals(f ProposalFilter, page int, pageSize int) ([]Proposal, uint64, error) {
	q := c.db.Model(&Proposal{})
	if f.Proposer != "" {
		q = q.Where("proposer = ?", f.Proposer)
	}
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	proposals := make([]Proposal, 0)
	err := q.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(id uint64) (*Proposal, error) {
	return loadProposal(c.db, id)
}

func (c *ChainIndexer) getMilestonesByProposal(id uint64) ([]Milestone, error) {
	milestones := make([]Milestone, 0)
	err := c.db.Where("proposal = ?", id).Order("milestone_index asc").Find(&milestones).Error
	return milestones, err
}

func (c *ChainIndexer) getVotes(proposal uint64, voter string, page int, pageSize int) ([]Vote, uint64, error) {
	q := c.db.Model(&Vote{})
	if proposal != 0 {
		q = q.Where("proposal = ?", proposal)
	}
	if voter != "" {
		q = q.Where("voter = ?", voter)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	votes := make([]Vote, 0)
	err := q.Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	return votes, total, err
}

func (c *ChainIndexer) getCommittee() ([]CommitteeMember, error) {
	members := make([]CommitteeMember, 0)
	err := c.db.Where("active = ?", true).Order("address asc").Find(&members).Error
	return members, err
}

func (c *ChainIndexer) getTransfers(address string, page int, pageSize int) ([]Transfer, uint64, error) {
	q := c.db.Model(&Transfer{})
	if address != "" {
		q = q.Where("from_address = ? OR to_address = ?", address, address)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	transfers := make([]Transfer, 0)
	err := q.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&transfers).Error
	return transfers, total, err
}

func (c *ChainIndexer) indexedHeight() (uint64, error) {
	h := Height{Id: 1}
	err := c.db.First(&h).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return 0, err
	}
	return h.Height, nil
}
