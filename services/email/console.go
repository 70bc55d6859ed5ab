package emailsvc

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
)

var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

type consoleService struct {
	conf             *core.Config
	logger           core.Logger
	defaultFromEmail mail.Address
	subjPrefix       string
	disableOutput    bool
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService prints messages to stdout instead of sending them.
func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		conf:             conf,
		logger:           logger,
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
	}
}

// ResetSentMessages forgets the messages recorded so far.
func ResetSentMessages() {
	mu.Lock()
	SentMessages = make([]core.EmailMessage, 0)
	mu.Unlock()
}

// LastSentMessage returns the last message recorded, if any.
func LastSentMessage() (core.EmailMessage, bool) {
	mu.Lock()
	defer mu.Unlock()
	if len(SentMessages) == 0 {
		return core.EmailMessage{}, false
	}
	return SentMessages[len(SentMessages)-1], true
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		svc.logger.Error("rendering email", errors.Wrap(err, msg.TemplateName))
		return
	}
	if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
		svc.send(*msg)
		mu.Lock()
		SentMessages = append(SentMessages, *msg)
		mu.Unlock()
	}
}

func (svc consoleService) send(msg core.EmailMessage) {
	var body strings.Builder
	if err := svc.writeMIME(&body, msg); err != nil {
		svc.logger.Error("printing email", err)
		return
	}
	if !svc.disableOutput {
		log.Println(body.String())
	}
}

// writeMIME writes msg as a multipart/alternative message, wrapped in multipart/mixed when it has attachments.
func (svc consoleService) writeMIME(w io.Writer, msg core.EmailMessage) error {
	header := []string{
		"From: " + svc.defaultFromEmail.String(),
		"MIME-Version: 1.0",
		"Date: " + time.Now().Format(time.RFC1123Z),
		"Subject: " + svc.subjPrefix + msg.Subject,
		"To: " + joinAddresses(msg.To),
	}
	if len(msg.Cc) > 0 {
		header = append(header, "Cc: "+joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		header = append(header, "Bcc: "+joinAddresses(msg.Bcc))
	}
	if msg.ReplyTo != nil {
		header = append(header, "Reply-To: "+msg.ReplyTo.String())
	}

	var mixed *multipart.Writer
	alt := multipart.NewWriter(w)
	if msg.HasAttachments() {
		mixed = multipart.NewWriter(w)
		header = append(header, "Content-Type: multipart/mixed; boundary="+mixed.Boundary())
	} else {
		header = append(header, "Content-Type: multipart/alternative; boundary="+alt.Boundary())
	}
	if _, err := io.WriteString(w, strings.Join(header, "\r\n")+"\r\n\r\n"); err != nil {
		return errors.Wrap(err, "writing header")
	}

	if mixed != nil {
		part := textproto.MIMEHeader{"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()}}
		if _, err := mixed.CreatePart(part); err != nil {
			return errors.Wrap(err, "creating multipart/alternative part")
		}
	}
	if err := writePart(alt, "text/plain; charset=utf-8", msg.TextContent); err != nil {
		return err
	}
	if msg.HTMLContent != "" {
		if err := writePart(alt, "text/html; charset=utf-8", msg.HTMLContent); err != nil {
			return err
		}
	}
	if err := alt.Close(); err != nil {
		return errors.Wrap(err, "closing multipart/alternative")
	}
	if mixed == nil {
		return nil
	}

	for _, at := range msg.Attachments {
		pw, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {at.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", at.Filename)},
		})
		if err != nil {
			return errors.Wrap(err, "creating "+at.ContentType+" part")
		}
		if _, err := io.WriteString(pw, at.Content.String()); err != nil {
			return errors.Wrap(err, "writing "+at.Filename)
		}
	}
	return errors.Wrap(mixed.Close(), "closing multipart/mixed")
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	pw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return errors.Wrap(err, "creating "+contentType+" part")
	}
	_, err = io.WriteString(pw, content)
	return errors.Wrap(err, "writing "+contentType+" part")
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

type consoleServiceMock struct {
	consoleService
}

// NewConsoleServiceMock records messages synchronously without printing them. Used in tests.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			conf:             conf,
			logger:           logger,
			defaultFromEmail: conf.DefaultFromEmail(),
			subjPrefix:       "[" + conf.AppName + "] ",
			disableOutput:    true,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		// run synchronously
		svc.sendMessage(msg)
	}
}
