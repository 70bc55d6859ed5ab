package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/messaging"
)

var channelFields = map[string]field[messaging.Channel]{
	"name": func(c messaging.Channel) interface{} { return c.Name },
}

type messagingRepository struct {
	db *DB
}

var _ messaging.Repository = (*messagingRepository)(nil)

func NewMessagingRepository(db *DB) *messagingRepository {
	return &messagingRepository{db: db}
}

func (repo *messagingRepository) CreateChannel(_ context.Context, ch messaging.Channel) (messaging.Channel, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ch.ID = uuid.New().String()
	repo.db.channels[ch.ID] = ch
	return ch, nil
}

func (repo *messagingRepository) QueryChannels(_ context.Context) ([]messaging.Channel, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	channels := values(repo.db.channels)
	sortRows(channels, nil, channelFields, core.DBOrdering{Field: "name", Ascending: true})
	return channels, nil
}

func (repo *messagingRepository) GetChannel(_ context.Context, id string) (messaging.Channel, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ch, ok := repo.db.channels[id]; ok {
		return ch, nil
	}
	return messaging.Channel{}, messaging.ErrChannelNotFound
}

func (repo *messagingRepository) DeleteChannel(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.channels, id)
	kept := repo.db.messages[:0]
	for _, msg := range repo.db.messages {
		if msg.ChannelID != id {
			kept = append(kept, msg)
		}
	}
	repo.db.messages = kept
	return nil
}

func (repo *messagingRepository) CreateMessage(_ context.Context, msg messaging.Message) (messaging.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.channels[msg.ChannelID]; !ok {
		return messaging.Message{}, messaging.ErrChannelNotFound
	}
	repo.db.messageSeq++
	msg.ID = repo.db.messageSeq
	repo.db.messages = append(repo.db.messages, msg)
	return msg, nil
}

// ListMessages relies on messages being appended in id order.
func (repo *messagingRepository) ListMessages(_ context.Context, channelID string, after int64, limit int) ([]messaging.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	messages := make([]messaging.Message, 0)
	for _, msg := range repo.db.messages {
		if len(messages) >= limit {
			break
		}
		if msg.ChannelID == channelID && msg.ID > after {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}
