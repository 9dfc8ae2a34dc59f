package chatinfra

import (
	"context"

	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/kernel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresTranscriptRepository archives exchanges in chat_exchanges.
type PostgresTranscriptRepository struct {
	db *sqlx.DB
}

func NewPostgresTranscriptRepository(db *sqlx.DB) *PostgresTranscriptRepository {
	return &PostgresTranscriptRepository{db: db}
}

// OpenPostgres connects with the lib/pq driver and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return sqlx.ConnectContext(ctx, "postgres", dsn)
}

// Save inserts the exchange. Re-saving an existing ID is a no-op.
func (r *PostgresTranscriptRepository) Save(ctx context.Context, e chat.Exchange) error {
	query := `
		INSERT INTO chat_exchanges (
			id, identity, kind, variant, request, response, created_at
		) VALUES (
			:id, :identity, :kind, :variant, :request, :response, :created_at
		)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return TranscriptErrRegistry.NewWithCause(ErrTranscriptSave, err).
			WithDetail("exchange_id", e.ID)
	}
	return nil
}

// ListByIdentity returns identity's exchanges, newest first.
func (r *PostgresTranscriptRepository) ListByIdentity(ctx context.Context, identity string, opts kernel.PaginationOptions) (kernel.Paginated[chat.Exchange], error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM chat_exchanges WHERE identity = $1`, identity); err != nil {
		return kernel.Paginated[chat.Exchange]{}, TranscriptErrRegistry.NewWithCause(ErrTranscriptList, err)
	}

	exchanges := []chat.Exchange{}
	query := `
		SELECT id, identity, kind, variant, request, response, created_at
		FROM chat_exchanges
		WHERE identity = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &exchanges, query, identity, opts.PageSize, opts.Offset()); err != nil {
		return kernel.Paginated[chat.Exchange]{}, TranscriptErrRegistry.NewWithCause(ErrTranscriptList, err)
	}

	return kernel.NewPaginated(exchanges, opts.Page, opts.PageSize, total), nil
}
