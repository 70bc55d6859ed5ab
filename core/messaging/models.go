package messaging

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/user"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Audience    string    `json:"audience"` // role prefix; empty means everyone
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// VisibleTo reports whether usr may read and post in the channel.
func (c Channel) VisibleTo(usr user.User) bool {
	return c.Audience == "" || usr.IsAdmin() || usr.RoleStartsWith(c.Audience)
}

type Message struct {
	ID         int64     `json:"id"`
	ChannelID  string    `json:"channel_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type NewChannel struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
	Audience    string `json:"audience" validate:"omitempty,channel_audience"`
}

func (nc *NewChannel) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Audience = core.CleanString(nc.Audience, true /* lower */)
	return validate.Struct(nc)
}

type NewMessage struct {
	Body string `json:"body" validate:"required,max=4000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Body = strings.TrimSpace(nm.Body)
	return validate.Struct(nm)
}

// Page selects the messages posted after a given message id.
type Page struct {
	After int64 `query:"after"`
	Limit int   `query:"limit"`
}

func (p *Page) Clean() {
	if p.After < 0 {
		p.After = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	} else if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}
