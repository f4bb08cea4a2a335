package queries

import (
	"context"
	"sort"

	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	"pollchain/contexts/ledger-voting/poll-program/domain/keys"
	"pollchain/contexts/ledger-voting/poll-program/domain/layout"
	"pollchain/contexts/ledger-voting/poll-program/ports"
)

// AccountsUseCase decodes stored program accounts for readers.
type AccountsUseCase struct {
	Ledger ports.Ledger
}

func (uc AccountsUseCase) GetPoll(ctx context.Context, pollID uint64) (entities.Poll, error) {
	account, found, err := uc.Ledger.GetAccount(ctx, keys.PollAddress(pollID))
	if err != nil {
		return entities.Poll{}, err
	}
	if !found {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return layout.DecodePoll(pollID, account.Data)
}

// GetCandidate looks the candidate up by its exact registered name.
func (uc AccountsUseCase) GetCandidate(ctx context.Context, pollID uint64, name string) (entities.Candidate, error) {
	account, found, err := uc.Ledger.GetAccount(ctx, keys.CandidateAddress(pollID, name))
	if err != nil {
		return entities.Candidate{}, err
	}
	if !found {
		return entities.Candidate{}, domainerrors.ErrCandidateNotFound
	}
	return layout.DecodeCandidate(pollID, account.Data)
}

func (uc AccountsUseCase) GetVoterRecord(ctx context.Context, pollID uint64, voter string) (entities.VoterRecord, error) {
	account, found, err := uc.Ledger.GetAccount(ctx, keys.VoterRecordAddress(pollID, voter))
	if err != nil {
		return entities.VoterRecord{}, err
	}
	if !found {
		return entities.VoterRecord{}, domainerrors.ErrVoterRecordNotFound
	}
	return layout.DecodeVoterRecord(pollID, voter, account.Data)
}

// ListCandidates returns the candidates of a poll ordered by name.
func (uc AccountsUseCase) ListCandidates(ctx context.Context, pollID uint64) ([]entities.Candidate, error) {
	if _, err := uc.GetPoll(ctx, pollID); err != nil {
		return nil, err
	}
	accounts, err := uc.Ledger.ListAccounts(ctx, entities.AccountKindCandidate, pollID)
	if err != nil {
		return nil, err
	}
	items := make([]entities.Candidate, 0, len(accounts))
	for _, account := range accounts {
		candidate, err := layout.DecodeCandidate(pollID, account.Data)
		if err != nil {
			return nil, err
		}
		items = append(items, candidate)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// ListVoterRecords returns the stored voter records of a poll. Voter
// identities are seeds and are not recoverable from account data, so the
// returned records carry an empty Voter.
func (uc AccountsUseCase) ListVoterRecords(ctx context.Context, pollID uint64) ([]entities.VoterRecord, error) {
	accounts, err := uc.Ledger.ListAccounts(ctx, entities.AccountKindVoterRecord, pollID)
	if err != nil {
		return nil, err
	}
	items := make([]entities.VoterRecord, 0, len(accounts))
	for _, account := range accounts {
		record, err := layout.DecodeVoterRecord(pollID, "", account.Data)
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	return items, nil
}
