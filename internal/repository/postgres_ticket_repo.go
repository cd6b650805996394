package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/awesome-events/internal/model"
)

// PostgresTicketRepo はPostgreSQLを使用した参加登録リポジトリ。
type PostgresTicketRepo struct {
	db *sql.DB
}

// NewPostgresTicketRepo はPostgresTicketRepoを生成する。
func NewPostgresTicketRepo(db *sql.DB) *PostgresTicketRepo {
	return &PostgresTicketRepo{db: db}
}

// FindByUserAndEvent はユーザーIDとイベントIDで参加登録を検索する。見つからない場合はnilを返す。
func (r *PostgresTicketRepo) FindByUserAndEvent(ctx context.Context, userID, eventID string) (*model.Ticket, error) {
	ticket := &model.Ticket{}
	var comment sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, event_id, comment, created_at
		 FROM tickets
		 WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	).Scan(&ticket.ID, &ticket.UserID, &ticket.EventID, &comment, &ticket.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	ticket.Comment = comment.String
	return ticket, nil
}

// Create は参加登録を作成する。
func (r *PostgresTicketRepo) Create(ctx context.Context, ticket *model.Ticket) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tickets (id, user_id, event_id, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ticket.ID, ticket.UserID, ticket.EventID, nullString(ticket.Comment), ticket.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", translatePQError(err, "tickets"))
	}
	return nil
}

// DeleteByUserAndEvent は参加登録を削除する。該当がない場合はエラーを返す。
func (r *PostgresTicketRepo) DeleteByUserAndEvent(ctx context.Context, userID, eventID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tickets WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ticket not found: user=%s event=%s", userID, eventID)
	}
	return nil
}

// ListByEventID はイベントの参加登録を参加者情報付きで登録順に返す。
// 退会済みユーザーの参加登録はUserがnilになる。
func (r *PostgresTicketRepo) ListByEventID(ctx context.Context, eventID string) ([]*model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.event_id, t.comment, t.created_at,
		        u.id, u.provider, u.uid, u.name, u.image_url, u.created_at, u.updated_at
		 FROM tickets t
		 LEFT JOIN users u ON u.id = t.user_id
		 WHERE t.event_id = $1
		 ORDER BY t.created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		var (
			t                      model.Ticket
			ticketUserID, comment  sql.NullString
			uID, uProvider, uUID   sql.NullString
			uName, uImageURL       sql.NullString
			uCreatedAt, uUpdatedAt sql.NullTime
		)
		if err := rows.Scan(
			&t.ID, &ticketUserID, &t.EventID, &comment, &t.CreatedAt,
			&uID, &uProvider, &uUID, &uName, &uImageURL, &uCreatedAt, &uUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		t.UserID = ticketUserID.String
		t.Comment = comment.String
		if uID.Valid {
			t.User = &model.User{
				ID:        uID.String,
				Provider:  uProvider.String,
				UID:       uUID.String,
				Name:      uName.String,
				ImageURL:  uImageURL.String,
				CreatedAt: uCreatedAt.Time,
				UpdatedAt: uUpdatedAt.Time,
			}
		}
		tickets = append(tickets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

// compile-time interface check
var _ TicketRepository = (*PostgresTicketRepo)(nil)
