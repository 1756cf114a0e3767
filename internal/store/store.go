package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	Courses     CourseRepository
	Events      EventRepository
	Subscribers SubscriberRepository
	Reports     ReportRepository
}

// New wires concrete repository implementations over a shared connection
// pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:        pool,
		Courses:     &courseRepo{pool: pool},
		Events:      &eventRepo{pool: pool},
		Subscribers: &subscriberRepo{pool: pool},
		Reports:     &reportRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
