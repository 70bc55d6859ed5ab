package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chuo/core/messaging"
)

const (
	channelColumns = `id, name, description, audience, created_by, created_at`
	messageColumns = `id, channel_id, sender_id, sender_name, body, created_at`
)

type channelRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Description string      `db:"description"`
	Audience    string      `db:"audience"`
	CreatedBy   null.String `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r channelRow) channel() messaging.Channel {
	return messaging.Channel{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Audience:    r.Audience,
		CreatedBy:   r.CreatedBy.String,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type messageRow struct {
	ID         int64       `db:"id"`
	ChannelID  string      `db:"channel_id"`
	SenderID   null.String `db:"sender_id"`
	SenderName string      `db:"sender_name"`
	Body       string      `db:"body"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r messageRow) message() messaging.Message {
	return messaging.Message{
		ID:         r.ID,
		ChannelID:  r.ChannelID,
		SenderID:   r.SenderID.String,
		SenderName: r.SenderName,
		Body:       r.Body,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type messagingRepository struct {
	db *sqlx.DB
}

var _ messaging.Repository = (*messagingRepository)(nil)

func NewMessagingRepository(db *sqlx.DB) *messagingRepository {
	return &messagingRepository{db: db}
}

func (repo messagingRepository) CreateChannel(ctx context.Context, ch messaging.Channel) (messaging.Channel, error) {
	ch.ID = uuid.New().String()
	q := `INSERT INTO channel (` + channelColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, q,
		ch.ID, ch.Name, ch.Description, ch.Audience, nullString(ch.CreatedBy), ch.CreatedAt.UTC())
	if err != nil {
		return messaging.Channel{}, errors.Wrap(err, "inserting channel")
	}
	return ch, nil
}

func (repo messagingRepository) QueryChannels(ctx context.Context) ([]messaging.Channel, error) {
	var rows []channelRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+channelColumns+` FROM channel ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying channels")
	}
	channels := make([]messaging.Channel, 0, len(rows))
	for _, r := range rows {
		channels = append(channels, r.channel())
	}
	return channels, nil
}

func (repo messagingRepository) GetChannel(ctx context.Context, id string) (messaging.Channel, error) {
	if !validUUID(id) {
		return messaging.Channel{}, messaging.ErrChannelNotFound
	}
	var row channelRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+channelColumns+` FROM channel WHERE id = $1`, id); err != nil {
		return messaging.Channel{}, trapNoRowsErr(err, messaging.ErrChannelNotFound, "finding channel")
	}
	return row.channel(), nil
}

// DeleteChannel relies on the message foreign key cascading.
func (repo messagingRepository) DeleteChannel(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM channel WHERE id = $1`, id)
	return errors.Wrap(err, "deleting channel")
}

func (repo messagingRepository) CreateMessage(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	q := `INSERT INTO message (channel_id, sender_id, sender_name, body, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := repo.db.GetContext(ctx, &msg.ID, q,
		msg.ChannelID, nullString(msg.SenderID), msg.SenderName, msg.Body, msg.CreatedAt.UTC())
	if err != nil {
		return messaging.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo messagingRepository) ListMessages(ctx context.Context, channelID string, after int64, limit int) ([]messaging.Message, error) {
	var rows []messageRow
	q := `SELECT ` + messageColumns + ` FROM message WHERE channel_id = $1 AND id > $2 ORDER BY id LIMIT $3`
	if err := repo.db.SelectContext(ctx, &rows, q, channelID, after, limit); err != nil {
		return nil, errors.Wrap(err, "listing messages")
	}
	messages := make([]messaging.Message, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, r.message())
	}
	return messages, nil
}
