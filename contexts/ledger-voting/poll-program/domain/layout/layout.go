// Package layout defines the persisted byte layout of program accounts.
//
// Every account is an 8-byte discriminator followed by its fields in little
// endian order; strings are a u32 byte length followed by the bytes. Account
// data is zero padded to the fixed space allocated for its kind, so the
// maximum string lengths below are enforced here and nowhere else.
package layout

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"pollchain/contexts/ledger-voting/poll-program/domain/entities"
	domainerrors "pollchain/contexts/ledger-voting/poll-program/domain/errors"
)

const (
	DiscriminatorSize = 8

	MaxQuestionLen      = 280
	MaxCandidateNameLen = 100
	MaxIdentityLen      = 64
)

const (
	PollSpace = DiscriminatorSize +
		4 + MaxQuestionLen + // question
		8 + // start_time
		8 + // end_time
		8 + // candidate_count
		1 + // closed
		4 + MaxIdentityLen // authority

	CandidateSpace = DiscriminatorSize +
		4 + MaxCandidateNameLen + // name
		8 // vote_count

	VoterRecordSpace = DiscriminatorSize +
		1 + // has_voted
		8 + // timestamp
		4 + MaxCandidateNameLen // candidate
)

// Discriminator returns the account header for kind.
func Discriminator(kind entities.AccountKind) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + string(kind)))
	var out [DiscriminatorSize]byte
	copy(out[:], sum[:DiscriminatorSize])
	return out
}

// Space is the fixed allocation for an account of kind.
func Space(kind entities.AccountKind) int {
	switch kind {
	case entities.AccountKindPoll:
		return PollSpace
	case entities.AccountKindCandidate:
		return CandidateSpace
	case entities.AccountKindVoterRecord:
		return VoterRecordSpace
	default:
		return 0
	}
}

// CheckSpace rejects data that does not fit the allocation of kind.
func CheckSpace(kind entities.AccountKind, data []byte) error {
	space := Space(kind)
	if space == 0 {
		return fmt.Errorf("unknown account kind %q: %w", kind, domainerrors.ErrAccountDataCorrupt)
	}
	if len(data) > space {
		return domainerrors.ErrAccountDataTooLarge
	}
	return nil
}

func EncodePoll(poll entities.Poll) ([]byte, error) {
	w := newWriter(entities.AccountKindPoll)
	if err := w.string(poll.Question, MaxQuestionLen); err != nil {
		return nil, err
	}
	w.u64(poll.StartTime)
	w.u64(poll.EndTime)
	w.u64(poll.CandidateCount)
	w.bool(poll.Closed)
	if err := w.string(poll.Authority, MaxIdentityLen); err != nil {
		return nil, err
	}
	return w.finish()
}

func DecodePoll(pollID uint64, data []byte) (entities.Poll, error) {
	r, err := newReader(entities.AccountKindPoll, data)
	if err != nil {
		return entities.Poll{}, err
	}
	poll := entities.Poll{PollID: pollID}
	poll.Question = r.string(MaxQuestionLen)
	poll.StartTime = r.u64()
	poll.EndTime = r.u64()
	poll.CandidateCount = r.u64()
	poll.Closed = r.bool()
	poll.Authority = r.string(MaxIdentityLen)
	if r.err != nil {
		return entities.Poll{}, r.err
	}
	return poll, nil
}

func EncodeCandidate(candidate entities.Candidate) ([]byte, error) {
	w := newWriter(entities.AccountKindCandidate)
	if err := w.string(candidate.Name, MaxCandidateNameLen); err != nil {
		return nil, err
	}
	w.u64(candidate.VoteCount)
	return w.finish()
}

func DecodeCandidate(pollID uint64, data []byte) (entities.Candidate, error) {
	r, err := newReader(entities.AccountKindCandidate, data)
	if err != nil {
		return entities.Candidate{}, err
	}
	candidate := entities.Candidate{PollID: pollID}
	candidate.Name = r.string(MaxCandidateNameLen)
	candidate.VoteCount = r.u64()
	if r.err != nil {
		return entities.Candidate{}, r.err
	}
	return candidate, nil
}

func EncodeVoterRecord(record entities.VoterRecord) ([]byte, error) {
	w := newWriter(entities.AccountKindVoterRecord)
	w.bool(record.HasVoted)
	w.u64(uint64(record.Timestamp))
	if err := w.string(record.Candidate, MaxCandidateNameLen); err != nil {
		return nil, err
	}
	return w.finish()
}

func DecodeVoterRecord(pollID uint64, voter string, data []byte) (entities.VoterRecord, error) {
	r, err := newReader(entities.AccountKindVoterRecord, data)
	if err != nil {
		return entities.VoterRecord{}, err
	}
	record := entities.VoterRecord{PollID: pollID, Voter: voter}
	record.HasVoted = r.bool()
	record.Timestamp = int64(r.u64())
	record.Candidate = r.string(MaxCandidateNameLen)
	if r.err != nil {
		return entities.VoterRecord{}, r.err
	}
	return record, nil
}

type writer struct {
	kind entities.AccountKind
	buf  []byte
}

func newWriter(kind entities.AccountKind) *writer {
	disc := Discriminator(kind)
	buf := make([]byte, 0, Space(kind))
	return &writer{kind: kind, buf: append(buf, disc[:]...)}
}

func (w *writer) string(value string, maxLen int) error {
	if len(value) > maxLen {
		return domainerrors.ErrAccountDataTooLarge
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(value)))
	w.buf = append(w.buf, value...)
	return nil
}

func (w *writer) u64(value uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, value)
}

func (w *writer) bool(value bool) {
	if value {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *writer) finish() ([]byte, error) {
	space := Space(w.kind)
	if len(w.buf) > space {
		return nil, domainerrors.ErrAccountDataTooLarge
	}
	out := make([]byte, space)
	copy(out, w.buf)
	return out, nil
}

// reader records the first decode failure and returns zero values after it.
type reader struct {
	data []byte
	off  int
	err  error
}

func newReader(kind entities.AccountKind, data []byte) (*reader, error) {
	if len(data) < DiscriminatorSize {
		return nil, domainerrors.ErrAccountDataCorrupt
	}
	disc := Discriminator(kind)
	for i := range disc {
		if data[i] != disc[i] {
			return nil, domainerrors.ErrAccountDiscriminatorMismatch
		}
	}
	return &reader{data: data, off: DiscriminatorSize}, nil
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = domainerrors.ErrAccountDataCorrupt
		return nil
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) string(maxLen int) string {
	raw := r.take(4)
	if raw == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(raw)
	if n > uint32(maxLen) {
		r.err = domainerrors.ErrAccountDataCorrupt
		return ""
	}
	return string(r.take(int(n)))
}

func (r *reader) u64() uint64 {
	raw := r.take(8)
	if raw == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(raw)
}

func (r *reader) bool() bool {
	raw := r.take(1)
	if raw == nil {
		return false
	}
	switch raw[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		r.err = domainerrors.ErrAccountDataCorrupt
		return false
	}
}
