package entities

// Address is the stable storage address of an account, derived from seeds.
type Address string

func (a Address) String() string {
	return string(a)
}

type AccountKind string

const (
	AccountKindPoll        AccountKind = "Poll"
	AccountKindCandidate   AccountKind = "Candidate"
	AccountKindVoterRecord AccountKind = "VoterRecord"
)

// Poll is a single vote-able question with a bounded time window.
// PollID is a seed of the account address and is not part of its data.
type Poll struct {
	PollID         uint64
	Question       string
	StartTime      uint64
	EndTime        uint64
	CandidateCount uint64
	Closed         bool
	Authority      string
}

// AcceptsVotesAt reports whether ledger time now is inside the poll's
// closing bound. There is no lower bound on StartTime.
func (p Poll) AcceptsVotesAt(now int64) bool {
	if p.Closed {
		return false
	}
	if now < 0 {
		return true
	}
	return uint64(now) <= p.EndTime
}

type Candidate struct {
	PollID    uint64
	Name      string
	VoteCount uint64
}

// VoterRecord marks that Voter already voted in PollID. Once HasVoted is set
// the record never changes again.
type VoterRecord struct {
	PollID    uint64
	Voter     string
	HasVoted  bool
	Timestamp int64
	Candidate string
}
