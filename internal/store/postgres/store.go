// Package postgres implements the domain repositories on PostgreSQL via
// pgx. The Store is also the Transactor: repositories called with a ctx
// produced by InTx join that transaction.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/tenantgraph/internal/domain"
)

type Store struct {
	pool       *pgxpool.Pool
	tenants    *TenantRepo
	mappings   *TenantMappingRepo
	workspaces *WorkspaceRepo
	groups     *GroupRepo
	principals *PrincipalRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	err = runMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: migrate: %w", err)
	}

	s := &Store{pool: pool}
	s.tenants = &TenantRepo{store: s}
	s.mappings = &TenantMappingRepo{store: s}
	s.workspaces = &WorkspaceRepo{store: s}
	s.groups = &GroupRepo{store: s}
	s.principals = &PrincipalRepo{store: s}

	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Tenants() domain.TenantRepository            { return s.tenants }
func (s *Store) Mappings() domain.TenantMappingRepository    { return s.mappings }
func (s *Store) Workspaces() domain.WorkspaceRepository      { return s.workspaces }
func (s *Store) Groups() domain.GroupRepository              { return s.groups }
func (s *Store) Principals() domain.PrincipalRepository      { return s.principals }

// querier is the subset of pgx shared by pgxpool.Pool and pgx.Tx, so
// repository methods run against whichever the context selects.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txKey struct{}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// InTx runs fn inside a transaction. A nested call joins the transaction
// already carried by ctx.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres.InTx: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = fn(context.WithValue(ctx, txKey{}, tx))
	if err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("postgres.InTx: commit: %w", err)
	}

	return nil
}
