package commands

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	application "pollchain/contexts/ledger-voting/poll-program/application"
	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/keys"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"
)

const instructionInitializePool = "initialize_pool"

// InitializePoolCommand creates a poll. Signer is the host-verified payer and
// becomes the poll authority.
type InitializePoolCommand struct {
	PollID         uint64
	StartTime      uint64
	EndTime        uint64
	Question       string
	Signer         string
	IdempotencyKey string
}

type InitializePoolResult struct {
	Address  entities.Address
	Poll     entities.Poll
	Logs     []string
	Replayed bool
}

// InitializePool creates the poll account. Unlike a create-or-reuse
// allocation it refuses an existing poll id, so metadata is never reset.
func (uc ProgramUseCase) InitializePool(ctx context.Context, cmd InitializePoolCommand) (InitializePoolResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	signer := cmd.Signer
	logger.Info("initialize pool processing started",
		"event", "poll_program_initialize_pool_started",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", cmd.PollID,
		"signer", signer,
	)
	if !validIdentifier(signer) || !utf8.ValidString(cmd.Question) {
		logger.Warn("initialize pool validation failed",
			"event", "poll_program_initialize_pool_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
		)
		return InitializePoolResult{}, domainerrors.ErrInvalidInput
	}
	if cmd.StartTime > cmd.EndTime {
		logger.Warn("initialize pool window rejected",
			"event", "poll_program_initialize_pool_window_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"start_time", cmd.StartTime,
			"end_time", cmd.EndTime,
		)
		return InitializePoolResult{}, domainerrors.ErrInvalidPollWindow
	}

	now := uc.now()
	requestHash := hashInstruction(instructionInitializePool, map[string]string{
		"poll_id":    strconv.FormatUint(cmd.PollID, 10),
		"start_time": strconv.FormatUint(cmd.StartTime, 10),
		"end_time":   strconv.FormatUint(cmd.EndTime, 10),
		"question":   cmd.Question,
		"signer":     signer,
	})
	var replay InitializePoolResult
	if found, err := uc.lookupReplay(ctx, instructionInitializePool, cmd.IdempotencyKey, requestHash, now, &replay); err != nil {
		return InitializePoolResult{}, err
	} else if found {
		replay.Replayed = true
		return replay, nil
	}

	poll := entities.Poll{
		PollID:         cmd.PollID,
		Question:       cmd.Question,
		StartTime:      cmd.StartTime,
		EndTime:        cmd.EndTime,
		CandidateCount: 0,
		Closed:         false,
		Authority:      signer,
	}
	data, err := layout.EncodePoll(poll)
	if err != nil {
		return InitializePoolResult{}, err
	}
	address := keys.PollAddress(cmd.PollID)
	err = uc.Ledger.Atomic(ctx, func(ctx context.Context, tx ports.LedgerTx) error {
		return tx.Create(ctx, ports.Account{
			Address:   address,
			Kind:      entities.AccountKindPoll,
			PollID:    cmd.PollID,
			Data:      data,
			UpdatedAt: now,
		})
	})
	if err != nil {
		logger.Warn("initialize pool rejected",
			"event", "poll_program_initialize_pool_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"poll_id", cmd.PollID,
			"error", err.Error(),
		)
		return InitializePoolResult{}, err
	}
	result := InitializePoolResult{
		Address: address,
		Poll:    poll,
		Logs:    []string{fmt.Sprintf("Poll %s initialized successfully!", poll.Question)},
	}
	if err := uc.rememberOutcome(ctx, cmd.IdempotencyKey, requestHash, address, now, result); err != nil {
		return InitializePoolResult{}, err
	}

	uc.emitProgramLogs(instructionInitializePool, result.Logs)
	logger.Info("poll initialized",
		"event", "poll_program_pool_initialized",
		"module", application.ModuleName,
		"layer", "application",
		"poll_id", poll.PollID,
		"address", address.String(),
		"start_time", poll.StartTime,
		"end_time", poll.EndTime,
	)
	return result, nil
}
