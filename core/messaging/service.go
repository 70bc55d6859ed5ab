package messaging

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/user"
)

var (
	// errors
	ErrChannelNotFound = core.NewNotFoundError("channel not found")

	subscriberBuffer = 64
)

type (
	Repository interface {
		CreateChannel(ctx context.Context, ch Channel) (Channel, error)
		QueryChannels(ctx context.Context) ([]Channel, error)
		GetChannel(ctx context.Context, id string) (Channel, error)
		// DeleteChannel deletes the channel and its messages.
		DeleteChannel(ctx context.Context, id string) error
		// CreateMessage assigns the next message id.
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// ListMessages returns up to limit messages with id > after, ascending.
		ListMessages(ctx context.Context, channelID string, after int64, limit int) ([]Message, error)
	}

	ServiceInterface interface {
		CreateChannel(nc NewChannel, creator user.User) (Channel, error)
		ListChannels(usr user.User) ([]Channel, error)
		GetChannel(id string, usr user.User) (Channel, error)
		DeleteChannel(id string) error
		PostMessage(channelID string, sender user.User, nm NewMessage) (Message, error)
		ListMessages(channelID string, usr user.User, page Page) ([]Message, error)
		Subscribe(channelID string, usr user.User) (*Subscription, error)
	}

	Service struct {
		repo Repository
		hub  *Hub
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, hub *Hub) *Service {
	if hub == nil {
		hub = NewHub(subscriberBuffer)
	}
	return &Service{repo: repo, hub: hub}
}

func (svc *Service) CreateChannel(nc NewChannel, creator user.User) (Channel, error) {
	ch, err := svc.repo.CreateChannel(context.Background(), Channel{
		Name:        nc.Name,
		Description: nc.Description,
		Audience:    nc.Audience,
		CreatedBy:   creator.ID,
		CreatedAt:   core.Now(),
	})
	return ch, errors.Wrap(err, "creating channel")
}

// ListChannels returns the channels visible to usr.
func (svc *Service) ListChannels(usr user.User) ([]Channel, error) {
	channels, err := svc.repo.QueryChannels(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "querying channels")
	}
	visible := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.VisibleTo(usr) {
			visible = append(visible, ch)
		}
	}
	return visible, nil
}

// GetChannel returns ErrChannelNotFound for channels usr cannot see.
func (svc *Service) GetChannel(id string, usr user.User) (Channel, error) {
	ch, err := svc.repo.GetChannel(context.Background(), id)
	if err != nil {
		return Channel{}, err
	}
	if !ch.VisibleTo(usr) {
		return Channel{}, ErrChannelNotFound
	}
	return ch, nil
}

func (svc *Service) DeleteChannel(id string) error {
	ctx := context.Background()
	if _, err := svc.repo.GetChannel(ctx, id); err != nil {
		return err
	}
	if err := svc.repo.DeleteChannel(ctx, id); err != nil {
		return errors.Wrap(err, "deleting channel")
	}
	svc.hub.CloseChannel(id)
	return nil
}

// PostMessage stores the message, then publishes it to the channel subscribers.
func (svc *Service) PostMessage(channelID string, sender user.User, nm NewMessage) (Message, error) {
	if _, err := svc.GetChannel(channelID, sender); err != nil {
		return Message{}, err
	}
	msg, err := svc.repo.CreateMessage(context.Background(), Message{
		ChannelID:  channelID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Body:       nm.Body,
		CreatedAt:  core.Now(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	svc.hub.Publish(msg)
	return msg, nil
}

func (svc *Service) ListMessages(channelID string, usr user.User, page Page) ([]Message, error) {
	if _, err := svc.GetChannel(channelID, usr); err != nil {
		return nil, err
	}
	page.Clean()
	return svc.repo.ListMessages(context.Background(), channelID, page.After, page.Limit)
}

// Subscribe returns a feed of the messages posted to a channel from now on. Callers must close it.
func (svc *Service) Subscribe(channelID string, usr user.User) (*Subscription, error) {
	if _, err := svc.GetChannel(channelID, usr); err != nil {
		return nil, err
	}
	return svc.hub.Subscribe(channelID), nil
}
