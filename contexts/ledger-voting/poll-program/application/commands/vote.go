package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	application "pollchain/contexts/ledger-voting/poll-program/application"
	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/keys"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"
)

const instructionVote = "vote"

// VoteCommand casts Voter's vote. Voter is the identity the host verified for
// this invocation.
type VoteCommand struct {
	PollID         uint64
	CandidateName  string
	Voter          string
	IdempotencyKey string
}

type VoteResult struct {
	Address     entities.Address
	VoterRecord entities.VoterRecord
	Candidate   entities.Candidate
	Logs        []string
	Replayed    bool
}

// Vote moves the (poll, voter) record from not-voted to voted and increments
// the chosen candidate's tally. Ledger time is read once and used both for
// the closing guard and for the stored timestamp.
func (uc ProgramUseCase) Vote(ctx context.Context, cmd VoteCommand) (VoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	name := cmd.CandidateName
	voter := cmd.Voter
	logger.Info("vote processing started",
		"event", "poll_program_vote_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"candidate_name", name,
		"voter", voter,
	)
	if !validIdentifier(name) || !validIdentifier(voter) {
		logger.Warn("vote validation failed",
			"event", "poll_program_vote_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter", voter,
		)
		return VoteResult{}, domainerrors.ErrInvalidInput
	}
	if len(voter) > layout.MaxIdentityLen {
		return VoteResult{}, domainerrors.ErrInvalidInput
	}

	now := uc.now()
	requestHash := hashInstruction(instructionVote, map[string]string{
		"poll_id":        strconv.FormatUint(cmd.PollID, 10),
		"candidate_name": name,
		"voter":          voter,
	})
	var replay VoteResult
	if found, err := uc.lookupReplay(ctx, instructionVote, cmd.IdempotencyKey, requestHash, now, &replay); err != nil {
		return VoteResult{}, err
	} else if found {
		replay.Replayed = true
		return replay, nil
	}

	emptyRecord, err := layout.EncodeVoterRecord(entities.VoterRecord{})
	if err != nil {
		return VoteResult{}, err
	}
	address := keys.VoterRecordAddress(cmd.PollID, voter)

	var result VoteResult
	err = uc.Ledger.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		_, poll, err := loadPoll(ctx, tx, cmd.PollID)
		if err != nil {
			return err
		}
		candidateAccount, candidate, err := loadCandidate(ctx, tx, cmd.PollID, name)
		if err != nil {
			return err
		}
		recordAccount, _, err := tx.InitIfNeeded(ctx, ports.Account{
			Address:   address,
			Kind:      entities.AccountKindVoterRecord,
			PollID:    cmd.PollID,
			Data:      emptyRecord,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		record, err := layout.DecodeVoterRecord(cmd.PollID, voter, recordAccount.Data)
		if err != nil {
			return err
		}

		if err := CheckVoteGuards(poll, record, now); err != nil {
			return err
		}

		record.HasVoted = true
		record.Timestamp = now.Unix()
		record.Candidate = candidate.Name
		candidate.VoteCount++

		recordData, err := layout.EncodeVoterRecord(record)
		if err != nil {
			return err
		}
		candidateData, err := layout.EncodeCandidate(candidate)
		if err != nil {
			return err
		}
		recordAccount.Data = recordData
		recordAccount.UpdatedAt = now
		candidateAccount.Data = candidateData
		candidateAccount.UpdatedAt = now
		if err := tx.Store(ctx, recordAccount); err != nil {
			return err
		}
		if err := tx.Store(ctx, candidateAccount); err != nil {
			return err
		}
		result = VoteResult{Address: address, VoterRecord: record, Candidate: candidate}
		return nil
	})
	if err != nil {
		logger.Warn("vote rejected",
			"event", "poll_program_vote_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_name", name,
			"voter", voter,
			"error", err.Error(),
		)
		return VoteResult{}, err
	}
	result.Logs = []string{
		fmt.Sprintf("Vote for %s cast successfully!", result.Candidate.Name),
		fmt.Sprintf("Total votes for %s: %d", result.Candidate.Name, result.Candidate.VoteCount),
	}
	if err := uc.rememberOutcome(ctx, cmd.IdempotencyKey, requestHash, address, now, result); err != nil {
		return VoteResult{}, err
	}

	uc.emitProgramLogs(instructionVote, result.Logs)
	logger.Info("vote cast",
		"event", "poll_program_vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"candidate_name", result.Candidate.Name,
		"voter", voter,
		"vote_count", result.Candidate.VoteCount,
		"timestamp", result.VoterRecord.Timestamp,
	)
	return result, nil
}

// CheckVoteGuards evaluates the vote preconditions in their fixed order:
// an existing vote wins over any closing condition.
func CheckVoteGuards(poll entities.Poll, record entities.VoterRecord, now time.Time) error {
	if record.HasVoted {
		return domainerrors.ErrAlreadyVoted
	}
	if !poll.AcceptsVotesAt(now.Unix()) {
		return domainerrors.ErrPollClosed
	}
	return nil
}
