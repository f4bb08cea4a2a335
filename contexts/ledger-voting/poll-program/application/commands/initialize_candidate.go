package commands

import (
	"context"
	"fmt"
	"strconv"

	application "pollchain/contexts/ledger-voting/poll-program/application"
	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/keys"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"
)

const instructionInitializeCandidate = "initialize_candidate"

type InitializeCandidateCommand struct {
	PollID         uint64
	CandidateName  string
	Signer         string
	IdempotencyKey string
}

type InitializeCandidateResult struct {
	Address   entities.Address
	Candidate entities.Candidate
	Poll      entities.Poll
	Logs      []string
	Replayed  bool
}

// InitializeCandidate attaches a candidate to an existing poll and bumps the
// poll's candidate count in the same unit. A second registration of the same
// name is rejected, which keeps candidate_count equal to the number of
// candidate accounts.
func (uc ProgramUseCase) InitializeCandidate(ctx context.Context, cmd InitializeCandidateCommand) (InitializeCandidateResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	name := cmd.CandidateName
	signer := cmd.Signer
	logger.Info("initialize candidate processing started",
		"event", "poll_program_initialize_candidate_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"candidate_name", name,
		"signer", signer,
	)
	if !validIdentifier(name) || !validIdentifier(signer) {
		logger.Warn("initialize candidate validation failed",
			"event", "poll_program_initialize_candidate_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
		)
		return InitializeCandidateResult{}, domainerrors.ErrInvalidInput
	}

	now := uc.now()
	requestHash := hashInstruction(instructionInitializeCandidate, map[string]string{
		"poll_id":        strconv.FormatUint(cmd.PollID, 10),
		"candidate_name": name,
		"signer":         signer,
	})
	var replay InitializeCandidateResult
	if found, err := uc.lookupReplay(ctx, instructionInitializeCandidate, cmd.IdempotencyKey, requestHash, now, &replay); err != nil {
		return InitializeCandidateResult{}, err
	} else if found {
		replay.Replayed = true
		return replay, nil
	}

	candidate := entities.Candidate{PollID: cmd.PollID, Name: name, VoteCount: 0}
	data, err := layout.EncodeCandidate(candidate)
	if err != nil {
		return InitializeCandidateResult{}, err
	}
	address := keys.CandidateAddress(cmd.PollID, name)

	var poll entities.Poll
	err = uc.Ledger.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		pollAccount, loaded, err := loadPoll(ctx, tx, cmd.PollID)
		if err != nil {
			return err
		}
		if err := tx.Create(ctx, ports.Account{
			Address:   address,
			Kind:      entities.AccountKindCandidate,
			PollID:    cmd.PollID,
			Data:      data,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		loaded.CandidateCount++
		pollData, err := layout.EncodePoll(loaded)
		if err != nil {
			return err
		}
		pollAccount.Data = pollData
		pollAccount.UpdatedAt = now
		if err := tx.Store(ctx, pollAccount); err != nil {
			return err
		}
		poll = loaded
		return nil
	})
	if err != nil {
		logger.Warn("initialize candidate rejected",
			"event", "poll_program_initialize_candidate_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"candidate_name", name,
			"error", err.Error(),
		)
		return InitializeCandidateResult{}, err
	}
	result := InitializeCandidateResult{
		Address:   address,
		Candidate: candidate,
		Poll:      poll,
		Logs:      []string{fmt.Sprintf("Candidate %s for Poll %s initialized successfully!", candidate.Name, poll.Question)},
	}
	if err := uc.rememberOutcome(ctx, cmd.IdempotencyKey, requestHash, address, now, result); err != nil {
		return InitializeCandidateResult{}, err
	}

	uc.emitProgramLogs(instructionInitializeCandidate, result.Logs)
	logger.Info("candidate initialized",
		"event", "poll_program_candidate_initialized",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"candidate_name", name,
		"address", address.String(),
		"candidate_count", poll.CandidateCount,
	)
	return result, nil
}
