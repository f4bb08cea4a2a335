package errors

import "errors"

var (
	ErrAlreadyVoted      = errors.New("the voter has already cast a vote in this poll")
	ErrPollClosed        = errors.New("the poll is closed and no more votes can be cast")
	ErrAlreadyExists     = errors.New("account already exists")
	ErrInvalidPollWindow = errors.New("poll start time is after its end time")
	ErrPollAlreadyClosed = errors.New("poll is already closed")
	ErrUnauthorized      = errors.New("signer is not the poll authority")

	ErrInvalidInput                 = errors.New("invalid instruction input")
	ErrPollNotFound                 = errors.New("poll not found")
	ErrCandidateNotFound            = errors.New("candidate not found")
	ErrVoterRecordNotFound          = errors.New("voter record not found")
	ErrAccountNotFound              = errors.New("account not found")
	ErrAccountDataTooLarge          = errors.New("account data exceeds allocated space")
	ErrAccountDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrAccountDataCorrupt           = errors.New("account data is malformed")
	ErrIdempotencyConflict          = errors.New("idempotency key conflict")
)
