// Package pollprogram implements the poll program inside the ledger-voting
// context.
//
// The module owns the on-ledger poll lifecycle: poll initialization, candidate
// registration, single-vote recording and poll closing. Every instruction is
// one atomic transition over deterministically addressed accounts; storage,
// ledger time and signer identity are provided by the host behind ports.
package pollprogram
