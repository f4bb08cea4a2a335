package commands

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	application "pollchain/contexts/ledger-voting/poll-program/application"
	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/keys"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"
)

// ProgramUseCase executes poll program instructions. Each instruction loads,
// validates, mutates and persists its accounts inside one Ledger.Atomic unit;
// guards run before any write so a rejected instruction leaves no trace.
type ProgramUseCase struct {
	Ledger         ports.Ledger
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (uc ProgramUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc ProgramUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

// lookupReplay decodes the stored outcome for key into dst. An empty key or
// a missing store disables replay detection.
func (uc ProgramUseCase) lookupReplay(
	ctx context.Context,
	instruction string,
	key string,
	requestHash string,
	now time.Time,
	dst any,
) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || uc.Idempotency == nil {
		return false, nil
	}
	logger := application.ResolveLogger(uc.Logger)
	record, found, err := uc.Idempotency.Get(ctx, key, now)
	if err != nil {
		logger.Error("instruction idempotency lookup failed",
			"event", "poll_program_idempotency_lookup_failed",
			"module", application.ModuleName,
			"layer", "application",
			"instruction", instruction,
			"error", err.Error(),
		)
		return false, err
	}
	if !found {
		return false, nil
	}
	if record.RequestHash != requestHash {
		logger.Warn("instruction idempotency conflict",
			"event", "poll_program_idempotency_conflict",
			"module", application.ModuleName,
			"layer", "application",
			"instruction", instruction,
		)
		return false, domainerrors.ErrIdempotencyConflict
	}
	if err := json.Unmarshal(record.ResponsePayload, dst); err != nil {
		logger.Error("instruction idempotency payload unreadable",
			"event", "poll_program_idempotency_payload_invalid",
			"module", application.ModuleName,
			"layer", "application",
			"instruction", instruction,
			"error", err.Error(),
		)
		return false, fmt.Errorf("decode stored outcome: %w", err)
	}
	logger.Info("instruction replayed",
		"event", "poll_program_instruction_replayed",
		"module", application.ModuleName,
		"layer", "application",
		"instruction", instruction,
		"address", record.Address,
	)
	return true, nil
}

// rememberOutcome stores the serialized result so a replay returns exactly
// what the first execution returned.
func (uc ProgramUseCase) rememberOutcome(
	ctx context.Context,
	key string,
	requestHash string,
	address entities.Address,
	now time.Time,
	outcome any,
) error {
	key = strings.TrimSpace(key)
	if key == "" || uc.Idempotency == nil {
		return nil
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	return uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:             key,
		RequestHash:     requestHash,
		Address:         address.String(),
		ResponsePayload: payload,
		ExpiresAt:       now.Add(uc.resolveIdempotencyTTL()),
	})
}

// emitProgramLogs writes the instruction's transaction log lines.
func (uc ProgramUseCase) emitProgramLogs(instruction string, lines []string) {
	logger := application.ResolveLogger(uc.Logger)
	for _, line := range lines {
		logger.Info(line,
			"event", "poll_program_log",
			"module", application.ModuleName,
			"layer", "application",
			"instruction", instruction,
		)
	}
}

func loadPoll(ctx context.Context, tx ports.LedgerTx, pollID uint64) (ports.Account, entities.Poll, error) {
	account, found, err := tx.Load(ctx, keys.PollAddress(pollID))
	if err != nil {
		return ports.Account{}, entities.Poll{}, err
	}
	if !found {
		return ports.Account{}, entities.Poll{}, domainerrors.ErrPollNotFound
	}
	poll, err := layout.DecodePoll(pollID, account.Data)
	if err != nil {
		return ports.Account{}, entities.Poll{}, err
	}
	return account, poll, nil
}

func loadCandidate(ctx context.Context, tx ports.LedgerTx, pollID uint64, name string) (ports.Account, entities.Candidate, error) {
	account, found, err := tx.Load(ctx, keys.CandidateAddress(pollID, name))
	if err != nil {
		return ports.Account{}, entities.Candidate{}, err
	}
	if !found {
		return ports.Account{}, entities.Candidate{}, domainerrors.ErrCandidateNotFound
	}
	candidate, err := layout.DecodeCandidate(pollID, account.Data)
	if err != nil {
		return ports.Account{}, entities.Candidate{}, err
	}
	return account, candidate, nil
}

// hashInstruction hashes the instruction name and its fields as
// length-prefixed raw bytes, so arbitrary byte strings never collide.
func hashInstruction(instruction string, fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	digest := sha256.New()
	writeField := func(value string) {
		digest.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(value))))
		digest.Write([]byte(value))
	}
	writeField(instruction)
	for _, name := range names {
		writeField(name)
		writeField(fields[name])
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// validIdentifier reports whether value can be used byte-exact as an account
// seed: non-empty UTF-8 with no surrounding whitespace.
func validIdentifier(value string) bool {
	return value != "" && value == strings.TrimSpace(value) && utf8.ValidString(value)
}
