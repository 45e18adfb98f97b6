package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id             uint64 `gorm:"primary_key" json:"id"`
	Proposer       string `gorm:"index" json:"proposer"`
	Amount         uint64 `json:"amount"`
	MilestoneCount uint32 `json:"milestone_count"`
	Bond           uint64 `json:"bond"`
	BondAmount     uint64 `json:"bond_amount"`
	BondState      string `json:"bond_state"`
	State          string `gorm:"index" json:"state"`
	RejectReason   string `json:"reject_reason"`
	Ayes           uint32 `json:"ayes"`
	Nays           uint32 `json:"nays"`
	Deadline       uint64 `json:"deadline"`
	Escrowed       uint64 `json:"escrowed"`
	Paid           uint64 `json:"paid"`
	SubmitHeight   uint64 `json:"submit_height"`
	SettleHeight   uint64 `json:"settle_height"`
	Deleted        bool   `json:"deleted"`
}

type Vote struct {
	Id       uint64 `gorm:"primary_key" json:"id"`
	Proposal uint64 `gorm:"unique_index:idx_vote" json:"proposal"`
	Voter    string `gorm:"unique_index:idx_vote" json:"voter"`
	Aye      bool   `json:"aye"`
	Height   uint64 `json:"height"`
}

type Milestone struct {
	Id           uint64 `gorm:"primary_key" json:"id"`
	Proposal     uint64 `gorm:"unique_index:idx_milestone" json:"proposal"`
	Index        uint32 `gorm:"column:milestone_index;unique_index:idx_milestone" json:"index"`
	Amount       uint64 `json:"amount"`
	State        string `json:"state"`
	SubmitHeight uint64 `json:"submit_height"`
	PaidHeight   uint64 `json:"paid_height"`
	Receipt      bool   `json:"receipt"`
}

type CommitteeMember struct {
	Address string `gorm:"primary_key" json:"address"`
	Active  bool   `json:"active"`
	Version uint64 `json:"version"`
	Height  uint64 `json:"height"`
}

type Transfer struct {
	Id          uint64 `gorm:"primary_key" json:"id"`
	FromAddress string `gorm:"index" json:"from"`
	ToAddress   string `gorm:"index" json:"to"`
	Amount      uint64 `json:"amount"`
	Height      uint64 `json:"height"`
}
