package keys

import (
	"encoding/binary"

	"pollchain/contexts/ledger-voting/poll-program/domain/entities"

	"github.com/google/uuid"
)

// ProgramNamespace scopes every derived address to this program.
var ProgramNamespace = uuid.MustParse("5b0d3c9e-7a41-4f6e-9c2d-8e1f0a7b6c35")

const (
	pollSeed      = "poll"
	candidateSeed = "candidate"
	voterSeed     = "voter"
)

// Derive hashes length-prefixed seeds into an address. Length prefixes keep
// ("ab", "c") and ("a", "bc") apart.
func Derive(seeds ...[]byte) entities.Address {
	size := 0
	for _, seed := range seeds {
		size += 4 + len(seed)
	}
	buf := make([]byte, 0, size)
	for _, seed := range seeds {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(seed)))
		buf = append(buf, seed...)
	}
	return entities.Address(uuid.NewSHA1(ProgramNamespace, buf).String())
}

func PollIDSeed(pollID uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, pollID)
}

func PollAddress(pollID uint64) entities.Address {
	return Derive([]byte(pollSeed), PollIDSeed(pollID))
}

func CandidateAddress(pollID uint64, name string) entities.Address {
	return Derive([]byte(candidateSeed), PollIDSeed(pollID), []byte(name))
}

func VoterRecordAddress(pollID uint64, voter string) entities.Address {
	return Derive([]byte(voterSeed), PollIDSeed(pollID), []byte(voter))
}
