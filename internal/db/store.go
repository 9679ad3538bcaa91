package db

// Store exposes the query surface the pipeline services consume.
// Services declare their own narrow interfaces over it, so tests can
// stub storage without a database.
type Store struct {
	pool *Pool
}

func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}
