package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"

	"github.com/calehh/loanpool-app/loanpool"
	"github.com/calehh/loanpool-app/state"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

const (
	QueryCodeNotFound   = 404
	QueryCodeBadRequest = 400
	QueryCodeInternal   = 500

	defaultPageSize = 20
	maxPageSize     = 100
)

func (app *LoanPoolApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = QueryCodeNotFound
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// QuerierFunc adapts a function reading the committed state to a Querier.
type QuerierFunc func(req *abcitypes.RequestQuery) (v any, height uint64, err error)

type querier struct {
	name   string
	logger cmtlog.Logger
	fn     QuerierFunc
}

func newQuerier(name string, logger cmtlog.Logger, fn QuerierFunc) *querier {
	return &querier{name: name, logger: logger, fn: fn}
}

func (q *querier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	v, height, err := q.fn(req)
	res.Height = int64(height)
	if err != nil {
		q.logger.Info("query fail", "path", q.name, "err", err)
		res.Code = QueryCodeInternal
		if err == errBadRequest {
			res.Code = QueryCodeBadRequest
		}
		res.Log = err.Error()
		return res, nil
	}
	if v == nil {
		res.Code = QueryCodeNotFound
		return res, nil
	}
	res.Value, err = json.Marshal(v)
	if err != nil {
		res.Code = QueryCodeInternal
		res.Log = err.Error()
	}
	return res, nil
}

var errBadRequest = errors.New("bad request")

// queryID reads an 8 byte big-endian id.
func queryID(data []byte) (uint64, bool) {
	if len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

func EncodeQueryID(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

// ListRequest is the data of a proposal list query.
type ListRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type PoolInfo struct {
	Address  common.Address `json:"address"`
	Free     uint64         `json:"free"`
	Reserved uint64         `json:"reserved"`
}

func NewAccountQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return newQuerier("accounts", logger, func(req *abcitypes.RequestQuery) (any, uint64, error) {
		if len(req.Data) != common.AddressLength {
			return nil, 0, errBadRequest
		}
		a, height, err := db.GetAccount(common.BytesToAddress(req.Data))
		if a == nil {
			return nil, height, err
		}
		return a, height, err
	})
}

// NewProposalQuerier answers a single proposal for an 8 byte id and a page of
// proposals, newest first, for a ListRequest.
func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return newQuerier("proposals", logger, func(req *abcitypes.RequestQuery) (any, uint64, error) {
		if id, ok := queryID(req.Data); ok {
			p, height, err := db.GetProposal(id)
			if p == nil {
				return nil, height, err
			}
			return p, height, err
		}
		lr := ListRequest{PageSize: defaultPageSize}
		if len(req.Data) > 0 {
			if err := json.Unmarshal(req.Data, &lr); err != nil {
				return nil, 0, errBadRequest
			}
		}
		if lr.Page < 0 {
			return nil, 0, errBadRequest
		}
		if lr.PageSize <= 0 || lr.PageSize > maxPageSize {
			lr.PageSize = defaultPageSize
		}
		return db.ListProposals(lr.Page, lr.PageSize)
	})
}

func NewEscrowQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return newQuerier("escrows", logger, func(req *abcitypes.RequestQuery) (any, uint64, error) {
		id, ok := queryID(req.Data)
		if !ok {
			return nil, 0, errBadRequest
		}
		e, height, err := db.GetEscrow(id)
		if e == nil {
			return nil, height, err
		}
		return e, height, err
	})
}

func NewCommitteeQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return newQuerier("committee", logger, func(*abcitypes.RequestQuery) (any, uint64, error) {
		return db.GetCommittee()
	})
}

func NewParamsQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return newQuerier("params", logger, func(*abcitypes.RequestQuery) (any, uint64, error) {
		gen, height, err := db.GetGenesis()
		if gen == nil {
			return nil, height, err
		}
		return gen.Params, height, err
	})
}

func NewPoolQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return newQuerier("pool", logger, func(*abcitypes.RequestQuery) (any, uint64, error) {
		info := &PoolInfo{Address: loanpool.PoolAccount()}
		a, height, err := db.GetAccount(info.Address)
		if err != nil {
			return nil, height, err
		}
		if a != nil {
			info.Free, info.Reserved = a.Free, a.Reserved
		}
		return info, height, nil
	})
}

func NewValidatorQuerier(db *state.StateDB, logger cmtlog.Logger) Querier {
	return newQuerier("validators", logger, func(*abcitypes.RequestQuery) (any, uint64, error) {
		return db.Validators()
	})
}
