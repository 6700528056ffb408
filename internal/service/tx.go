package service

import "context"

// TxRepositories hands out repositories bound to one transaction.
// Promotion uses it so the content-store insert, job enqueue and
// candidate discard commit or roll back together.
type TxRepositories interface {
	Items() ItemRepositoryInterface
	Candidates() CandidateRepositoryInterface
	EmbeddingJobs() EmbeddingJobRepositoryInterface
}

// TxRunner runs fn inside a transaction, committing on nil and rolling
// back on error.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
