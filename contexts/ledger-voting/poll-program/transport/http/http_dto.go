package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type InitializePoolRequest struct {
	PollID    uint64 `json:"poll_id"`
	StartTime uint64 `json:"start_time"`
	EndTime   uint64 `json:"end_time"`
	Question  string `json:"question"`
}

type InitializeCandidateRequest struct {
	CandidateName string `json:"candidate_name"`
}

type VoteRequest struct {
	CandidateName string `json:"candidate_name"`
}

type PollResponse struct {
	Address        string `json:"address,omitempty"`
	PollID         uint64 `json:"poll_id"`
	Question       string `json:"question"`
	StartTime      uint64 `json:"start_time"`
	EndTime        uint64 `json:"end_time"`
	CandidateCount uint64 `json:"candidate_count"`
	Closed         bool   `json:"closed"`
	Authority      string `json:"authority"`
}

type CandidateResponse struct {
	Address   string `json:"address,omitempty"`
	PollID    uint64 `json:"poll_id"`
	Name      string `json:"name"`
	VoteCount uint64 `json:"vote_count"`
}

type VoterRecordResponse struct {
	Address   string `json:"address,omitempty"`
	PollID    uint64 `json:"poll_id"`
	Voter     string `json:"voter"`
	HasVoted  bool   `json:"has_voted"`
	Timestamp int64  `json:"timestamp"`
	Candidate string `json:"candidate,omitempty"`
}

type InitializePoolResponse struct {
	Poll     PollResponse `json:"poll"`
	Logs     []string     `json:"logs"`
	Replayed bool         `json:"replayed"`
}

type InitializeCandidateResponse struct {
	Candidate CandidateResponse `json:"candidate"`
	Poll      PollResponse      `json:"poll"`
	Logs      []string          `json:"logs"`
	Replayed  bool              `json:"replayed"`
}

type VoteResponse struct {
	VoterRecord VoterRecordResponse `json:"voter_record"`
	Candidate   CandidateResponse   `json:"candidate"`
	Logs        []string            `json:"logs"`
	Replayed    bool                `json:"replayed"`
}

type ClosePollResponse struct {
	Poll     PollResponse `json:"poll"`
	Logs     []string     `json:"logs"`
	Replayed bool         `json:"replayed"`
}

type CandidateListResponse struct {
	PollID uint64              `json:"poll_id"`
	Items  []CandidateResponse `json:"items"`
}
