package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/tenantgraph/internal/domain"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "nil passes through",
			err:  nil,
			want: nil,
		},
		{
			name: "unique violation becomes conflict",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "tenant_mappings_tenant_id_key"},
			want: domain.ErrConflict,
		},
		{
			name: "wrapped unique violation becomes conflict",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation}),
			want: domain.ErrConflict,
		},
		{
			name: "foreign key violation becomes not found",
			err:  &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "workspaces_tenant_id_fkey"},
			want: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := mapError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapError_NamesConstraint(t *testing.T) {
	t.Parallel()

	err := mapError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "tenants_org_id_key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenants_org_id_key")
}

func TestMapError_UnmappedErrorsPassThrough(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	assert.Equal(t, error(pgErr), mapError(pgErr))

	assert.Equal(t, assert.AnError, mapError(assert.AnError))
}
