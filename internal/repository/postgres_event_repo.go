package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/awesome-events/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

const eventColumns = `e.id, e.owner_id, e.name, e.place, e.content, e.start_at, e.end_at,
	e.image_key, e.image_content_type, e.image_byte_size, e.image_width, e.image_height,
	e.created_at, e.updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event by ID: %w", err)
	}
	return event, nil
}

// Create はイベントを作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.Event) error {
	img := imageParams(event.Image)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, owner_id, name, place, content, start_at, end_at,
			image_key, image_content_type, image_byte_size, image_width, image_height,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		event.ID, nullString(event.OwnerID), event.Name, event.Place, event.Content,
		event.StartAt, event.EndAt,
		img.key, img.contentType, img.byteSize, img.width, img.height,
		event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", translatePQError(err, "events"))
	}
	return nil
}

// Update はイベントの内容と画像属性を上書き更新する。owner_idは変更しない。
func (r *PostgresEventRepo) Update(ctx context.Context, event *model.Event) error {
	img := imageParams(event.Image)
	result, err := r.db.ExecContext(ctx,
		`UPDATE events
		 SET name = $2, place = $3, content = $4, start_at = $5, end_at = $6,
		     image_key = $7, image_content_type = $8, image_byte_size = $9,
		     image_width = $10, image_height = $11, updated_at = $12
		 WHERE id = $1`,
		event.ID, event.Name, event.Place, event.Content, event.StartAt, event.EndAt,
		img.key, img.contentType, img.byteSize, img.width, img.height,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", translatePQError(err, "events"))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event not found: %s", event.ID)
	}
	return nil
}

// DeleteByID は指定IDのイベントを削除する。ticketsはCASCADE削除される。
func (r *PostgresEventRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// ListUpcoming はend_at > now のイベントを開始時刻の昇順で最大limit件返す。
func (r *PostgresEventRepo) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		 FROM events e
		 WHERE e.end_at > $1
		 ORDER BY e.start_at ASC, e.id ASC
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	return collectEvents(rows)
}

// ListByOwnerID は指定ユーザーが主催する全イベントを返す。
func (r *PostgresEventRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		 FROM events e
		 WHERE e.owner_id = $1
		 ORDER BY e.start_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by owner: %w", err)
	}
	return collectEvents(rows)
}

// ListByParticipantID は指定ユーザーが参加登録している全イベントを返す。
func (r *PostgresEventRepo) ListByParticipantID(ctx context.Context, userID string) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		 FROM events e
		 INNER JOIN tickets t ON t.event_id = e.id
		 WHERE t.user_id = $1
		 ORDER BY e.start_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by participant: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*model.Event, error) {
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		event          model.Event
		ownerID        sql.NullString
		startAt, endAt time.Time
		imageKey       sql.NullString
		imageType      sql.NullString
		imageSize      sql.NullInt64
		imageWidth     sql.NullInt32
		imageHeight    sql.NullInt32
	)
	err := row.Scan(
		&event.ID, &ownerID, &event.Name, &event.Place, &event.Content, &startAt, &endAt,
		&imageKey, &imageType, &imageSize, &imageWidth, &imageHeight,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 主催者が退会済みの場合、owner_idはNULLになる
	event.OwnerID = ownerID.String
	event.StartAt = &startAt
	event.EndAt = &endAt
	if imageKey.Valid {
		event.Image = &model.ImageAsset{
			Key:         imageKey.String,
			ContentType: imageType.String,
			ByteSize:    imageSize.Int64,
			Width:       int(imageWidth.Int32),
			Height:      int(imageHeight.Int32),
		}
	}
	return &event, nil
}

type imageColumns struct {
	key, contentType sql.NullString
	byteSize         sql.NullInt64
	width, height    sql.NullInt32
}

func imageParams(img *model.ImageAsset) imageColumns {
	if img == nil || img.Key == "" {
		return imageColumns{}
	}
	return imageColumns{
		key:         sql.NullString{String: img.Key, Valid: true},
		contentType: sql.NullString{String: img.ContentType, Valid: true},
		byteSize:    sql.NullInt64{Int64: img.ByteSize, Valid: true},
		width:       sql.NullInt32{Int32: int32(img.Width), Valid: true},
		height:      sql.NullInt32{Int32: int32(img.Height), Valid: true},
	}
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
