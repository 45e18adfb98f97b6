package main

import (
	"strconv"

	"github.com/calehh/loanpool-app/tx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var txArgs txArguments

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign and broadcast loan pool transactions",
}

var submitAmount uint64

var submitCmd = &cobra.Command{
	Use:   "submit <milestone-amount>...",
	Short: "Submit a loan proposal, reserving the proposal bond",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		milestones := make([]uint64, 0, len(args))
		for _, a := range args {
			v, err := strconv.ParseUint(a, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid milestone amount %q", a)
			}
			milestones = append(milestones, v)
		}
		amount := submitAmount
		if amount == 0 {
			for _, m := range milestones {
				amount += m
			}
		}
		return sendTx(&txArgs, tx.LoanTxTypeSubmit, &tx.SubmitTx{Amount: amount, Milestones: milestones})
	},
}

var voteNay bool

var voteCmd = &cobra.Command{
	Use:   "vote <proposal-id>",
	Short: "Cast or change a committee vote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return sendTx(&txArgs, tx.LoanTxTypeVote, &tx.VoteTx{Proposal: id, Aye: !voteNay})
	},
}

// proposalTxCmd builds a command whose only argument is the target proposal.
func proposalTxCmd(use, short string, tp tx.LoanTxType) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <proposal-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			return sendTx(&txArgs, tp, &tx.ProposalTx{Proposal: id})
		},
	}
	txFlags(cmd, &txArgs)
	return cmd
}

func committeeTxCmd(use, short string, tp tx.LoanTxType) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			return sendTx(&txArgs, tp, &tx.CommitteeTx{Member: member})
		},
	}
	txFlags(cmd, &txArgs)
	return cmd
}

func milestoneTxCmd(use, short string, tp tx.LoanTxType) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <proposal-id> <milestone-index>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return errors.Wrapf(err, "invalid milestone index %q", args[1])
			}
			return sendTx(&txArgs, tp, &tx.MilestoneTx{Proposal: id, Index: uint32(index)})
		},
	}
	txFlags(cmd, &txArgs)
	return cmd
}

var transferCmd = &cobra.Command{
	Use:   "transfer <address> <amount>",
	Short: "Transfer free balance to another account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid amount %q", args[1])
		}
		return sendTx(&txArgs, tx.LoanTxTypeTransfer, &tx.TransferTx{To: to, Amount: amount})
	},
}

func init() {
	txFlags(submitCmd, &txArgs)
	submitCmd.Flags().Uint64VarP(&submitAmount, "amount", "a", 0, "requested amount, the sum of the milestones when 0")
	txFlags(voteCmd, &txArgs)
	voteCmd.Flags().BoolVar(&voteNay, "nay", false, "vote against the proposal")
	txFlags(transferCmd, &txArgs)

	txCmd.AddCommand(
		submitCmd,
		voteCmd,
		transferCmd,
		proposalTxCmd("approve", "Approve a proposal through the approve origin", tx.LoanTxTypeApprove),
		proposalTxCmd("reject", "Reject a proposal through the reject origin", tx.LoanTxTypeReject),
		proposalTxCmd("delete", "Delete a proposal through the delete origin", tx.LoanTxTypeDelete),
		proposalTxCmd("withdraw", "Withdraw an own proposal before approval", tx.LoanTxTypeWithdraw),
		proposalTxCmd("close-vote", "Settle a vote whose deadline has passed", tx.LoanTxTypeCloseVote),
		proposalTxCmd("forfeit", "Forfeit the unpaid escrow of a loan back to the pool", tx.LoanTxTypeForfeit),
		committeeTxCmd("add-member", "Add a committee member", tx.LoanTxTypeAddMember),
		committeeTxCmd("remove-member", "Remove a committee member", tx.LoanTxTypeRemoveMember),
		milestoneTxCmd("submit-milestone", "Submit a milestone of an own escrowed loan for verification", tx.LoanTxTypeSubmitMilestone),
		milestoneTxCmd("verify-milestone", "Verify a submitted milestone and pay it out", tx.LoanTxTypeVerifyMilestone),
	)
}
