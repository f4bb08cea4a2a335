package httpadapter

import (
	"context"
	"log/slog"

	"pollchain/contexts/ledger-voting/poll-program/application/commands"
	"pollchain/contexts/ledger-voting/poll-program/application/queries"
	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	"pollchain/contexts/ledger-voting/poll-program/domain/keys"
	httptransport "pollchain/contexts/ledger-voting/poll-program/transport/http"
)

// Handler adapts transport requests to program instructions. signer is the
// identity the HTTP host has already verified.
type Handler struct {
	Program  commands.ProgramUseCase
	Accounts queries.AccountsUseCase
	Logger   *slog.Logger
}

func (h Handler) InitializePoolHandler(
	ctx context.Context,
	signer string,
	idempotencyKey string,
	req httptransport.InitializePoolRequest,
) (httptransport.InitializePoolResponse, error) {
	result, err := h.Program.InitializePool(ctx, commands.InitializePoolCommand{
		PollID:         req.PollID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Question:       req.Question,
		Signer:         signer,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.InitializePoolResponse{}, err
	}
	return httptransport.InitializePoolResponse{
		Poll:     mapPoll(result.Poll),
		Logs:     nonNilLogs(result.Logs),
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) InitializeCandidateHandler(
	ctx context.Context,
	signer string,
	idempotencyKey string,
	pollID uint64,
	req httptransport.InitializeCandidateRequest,
) (httptransport.InitializeCandidateResponse, error) {
	result, err := h.Program.InitializeCandidate(ctx, commands.InitializeCandidateCommand{
		PollID:         pollID,
		CandidateName:  req.CandidateName,
		Signer:         signer,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.InitializeCandidateResponse{}, err
	}
	return httptransport.InitializeCandidateResponse{
		Candidate: mapCandidate(result.Candidate),
		Poll:      mapPoll(result.Poll),
		Logs:      nonNilLogs(result.Logs),
		Replayed:  result.Replayed,
	}, nil
}

func (h Handler) VoteHandler(
	ctx context.Context,
	signer string,
	idempotencyKey string,
	pollID uint64,
	req httptransport.VoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Program.Vote(ctx, commands.VoteCommand{
		PollID:         pollID,
		CandidateName:  req.CandidateName,
		Voter:          signer,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		VoterRecord: mapVoterRecord(result.VoterRecord),
		Candidate:   mapCandidate(result.Candidate),
		Logs:        nonNilLogs(result.Logs),
		Replayed:    result.Replayed,
	}, nil
}

func (h Handler) ClosePollHandler(
	ctx context.Context,
	signer string,
	idempotencyKey string,
	pollID uint64,
) (httptransport.ClosePollResponse, error) {
	result, err := h.Program.ClosePoll(ctx, commands.ClosePollCommand{
		PollID:         pollID,
		Signer:         signer,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.ClosePollResponse{}, err
	}
	return httptransport.ClosePollResponse{
		Poll:     mapPoll(result.Poll),
		Logs:     nonNilLogs(result.Logs),
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) GetPollHandler(ctx context.Context, pollID uint64) (httptransport.PollResponse, error) {
	poll, err := h.Accounts.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapPoll(poll), nil
}

func (h Handler) GetCandidateHandler(ctx context.Context, pollID uint64, name string) (httptransport.CandidateResponse, error) {
	candidate, err := h.Accounts.GetCandidate(ctx, pollID, name)
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return mapCandidate(candidate), nil
}

func (h Handler) ListCandidatesHandler(ctx context.Context, pollID uint64) (httptransport.CandidateListResponse, error) {
	candidates, err := h.Accounts.ListCandidates(ctx, pollID)
	if err != nil {
		return httptransport.CandidateListResponse{}, err
	}
	items := make([]httptransport.CandidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, mapCandidate(candidate))
	}
	return httptransport.CandidateListResponse{PollID: pollID, Items: items}, nil
}

func (h Handler) GetVoterRecordHandler(ctx context.Context, pollID uint64, voter string) (httptransport.VoterRecordResponse, error) {
	record, err := h.Accounts.GetVoterRecord(ctx, pollID, voter)
	if err != nil {
		return httptransport.VoterRecordResponse{}, err
	}
	return mapVoterRecord(record), nil
}

func mapPoll(poll entities.Poll) httptransport.PollResponse {
	return httptransport.PollResponse{
		Address:        keys.PollAddress(poll.PollID).String(),
		PollID:         poll.PollID,
		Question:       poll.Question,
		StartTime:      poll.StartTime,
		EndTime:        poll.EndTime,
		CandidateCount: poll.CandidateCount,
		Closed:         poll.Closed,
		Authority:      poll.Authority,
	}
}

func mapCandidate(candidate entities.Candidate) httptransport.CandidateResponse {
	return httptransport.CandidateResponse{
		Address:   keys.CandidateAddress(candidate.PollID, candidate.Name).String(),
		PollID:    candidate.PollID,
		Name:      candidate.Name,
		VoteCount: candidate.VoteCount,
	}
}

func mapVoterRecord(record entities.VoterRecord) httptransport.VoterRecordResponse {
	return httptransport.VoterRecordResponse{
		Address:   keys.VoterRecordAddress(record.PollID, record.Voter).String(),
		PollID:    record.PollID,
		Voter:     record.Voter,
		HasVoted:  record.HasVoted,
		Timestamp: record.Timestamp,
		Candidate: record.Candidate,
	}
}

func nonNilLogs(logs []string) []string {
	if logs == nil {
		return []string{}
	}
	return logs
}
