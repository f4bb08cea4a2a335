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

const instructionClosePoll = "close_poll"

type ClosePollCommand struct {
	PollID         uint64
	Signer         string
	IdempotencyKey string
}

type ClosePollResult struct {
	Address  entities.Address
	Poll     entities.Poll
	Logs     []string
	Replayed bool
}

// ClosePoll ends voting before end_time. Only the poll authority may close.
func (uc ProgramUseCase) ClosePoll(ctx context.Context, cmd ClosePollCommand) (ClosePollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	signer := cmd.Signer
	logger.Info("close poll processing started",
		"event", "poll_program_close_poll_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"signer", signer,
	)
	if !validIdentifier(signer) {
		return ClosePollResult{}, domainerrors.ErrInvalidInput
	}

	now := uc.now()
	requestHash := hashInstruction(instructionClosePoll, map[string]string{
		"poll_id": strconv.FormatUint(cmd.PollID, 10),
		"signer":  signer,
	})
	var replay ClosePollResult
	if found, err := uc.lookupReplay(ctx, instructionClosePoll, cmd.IdempotencyKey, requestHash, now, &replay); err != nil {
		return ClosePollResult{}, err
	} else if found {
		replay.Replayed = true
		return replay, nil
	}

	var poll entities.Poll
	err := uc.Ledger.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		account, loaded, err := loadPoll(ctx, tx, cmd.PollID)
		if err != nil {
			return err
		}
		if loaded.Authority != signer {
			return domainerrors.ErrUnauthorized
		}
		if loaded.Closed {
			return domainerrors.ErrPollAlreadyClosed
		}
		loaded.Closed = true
		data, err := layout.EncodePoll(loaded)
		if err != nil {
			return err
		}
		account.Data = data
		account.UpdatedAt = now
		if err := tx.Store(ctx, account); err != nil {
			return err
		}
		poll = loaded
		return nil
	})
	if err != nil {
		logger.Warn("close poll rejected",
			"event", "poll_program_close_poll_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"signer", signer,
			"error", err.Error(),
		)
		return ClosePollResult{}, err
	}
	address := keys.PollAddress(cmd.PollID)
	result := ClosePollResult{
		Address: address,
		Poll:    poll,
		Logs:    []string{fmt.Sprintf("Poll %s closed.", poll.Question)},
	}
	if err := uc.rememberOutcome(ctx, cmd.IdempotencyKey, requestHash, address, now, result); err != nil {
		return ClosePollResult{}, err
	}

	uc.emitProgramLogs(instructionClosePoll, result.Logs)
	logger.Info("poll closed",
		"event", "poll_program_poll_closed",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"signer", signer,
	)
	return result, nil
}
