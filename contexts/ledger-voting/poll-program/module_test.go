package pollprogram_test

import (
	"context"
	"errors"
	"testing"
	"time"

	pollprogram "pollchain/contexts/ledger-voting/poll-program"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
	httptransport "pollchain/contexts/ledger-voting/poll-program/transport/http"
)

func TestPollLifecycleThroughHandler(t *testing.T) {
	module := pollprogram.NewInMemoryModule(nil, time.Hour)
	module.Store.SetNow(time.Unix(100, 0))
	ctx := context.Background()

	created, err := module.Handler.InitializePoolHandler(ctx, "payer-1", "", httptransport.InitializePoolRequest{
		PollID:    1,
		StartTime: 0,
		EndTime:   1000,
		Question:  "Best fruit?",
	})
	if err != nil {
		t.Fatalf("initialize pool failed: %v", err)
	}
	if created.Poll.Address == "" || created.Poll.Authority != "payer-1" {
		t.Fatalf("unexpected poll response: %+v", created.Poll)
	}
	if len(created.Logs) != 1 || created.Logs[0] != "Poll Best fruit? initialized successfully!" {
		t.Fatalf("unexpected logs: %v", created.Logs)
	}

	candidate, err := module.Handler.InitializeCandidateHandler(ctx, "payer-1", "", 1, httptransport.InitializeCandidateRequest{CandidateName: "Apple"})
	if err != nil {
		t.Fatalf("initialize candidate failed: %v", err)
	}
	if candidate.Poll.CandidateCount != 1 || candidate.Logs[0] != "Candidate Apple for Poll Best fruit? initialized successfully!" {
		t.Fatalf("unexpected candidate response: %+v", candidate)
	}

	vote, err := module.Handler.VoteHandler(ctx, "V1", "idem-1", 1, httptransport.VoteRequest{CandidateName: "Apple"})
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	replay, err := module.Handler.VoteHandler(ctx, "V1", "idem-1", 1, httptransport.VoteRequest{CandidateName: "Apple"})
	if err != nil {
		t.Fatalf("replay vote failed: %v", err)
	}
	if !replay.Replayed || replay.VoterRecord.Address != vote.VoterRecord.Address {
		t.Fatalf("expected replayed vote, got %+v", replay)
	}
	if len(replay.Logs) != len(vote.Logs) || replay.Logs[1] != vote.Logs[1] {
		t.Fatalf("expected replay to return the original logs %q, got %q", vote.Logs, replay.Logs)
	}

	record, err := module.Handler.GetVoterRecordHandler(ctx, 1, "V1")
	if err != nil {
		t.Fatalf("get voter record failed: %v", err)
	}
	if !record.HasVoted || record.Timestamp != 100 || record.Candidate != "Apple" || record.Voter != "V1" {
		t.Fatalf("unexpected voter record: %+v", record)
	}

	list, err := module.Handler.ListCandidatesHandler(ctx, 1)
	if err != nil {
		t.Fatalf("list candidates failed: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].VoteCount != 1 {
		t.Fatalf("unexpected candidate list: %+v", list)
	}

	if _, err := module.Handler.ClosePollHandler(ctx, "V1", "", 1); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized close, got %v", err)
	}
	closed, err := module.Handler.ClosePollHandler(ctx, "payer-1", "", 1)
	if err != nil {
		t.Fatalf("close poll failed: %v", err)
	}
	if !closed.Poll.Closed || closed.Logs[0] != "Poll Best fruit? closed." {
		t.Fatalf("unexpected close response: %+v", closed)
	}
	if _, err := module.Handler.VoteHandler(ctx, "V2", "", 1, httptransport.VoteRequest{CandidateName: "Apple"}); !errors.Is(err, domainerrors.ErrPollClosed) {
		t.Fatalf("expected poll closed, got %v", err)
	}
}
