package provisionsvc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/mailbox"
	"github.com/trezcool/chuo/services/httpx"
)

// httpProvisioner calls the mailbox edge function: one POST per action on `<base URL>/<action>`.
type httpProvisioner struct {
	baseURL string
	key     string
	client  *http.Client
	retry   httpx.RetryConfig
}

var _ mailbox.Provisioner = (*httpProvisioner)(nil)

func NewHTTPProvisioner(conf *core.Config) *httpProvisioner {
	return &httpProvisioner{
		baseURL: strings.TrimSuffix(conf.Mailbox.ProvisionerURL, "/"),
		key:     conf.Mailbox.ProvisionerKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   httpx.DefaultRetryConfig(),
	}
}

type (
	createRequest struct {
		Address   string `json:"address"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Kind      string `json:"kind"`
	}

	passwordRequest struct {
		Address  string `json:"address"`
		Password string `json:"password"`
	}

	suspendRequest struct {
		Address   string `json:"address"`
		Suspended bool   `json:"suspended"`
	}

	addressRequest struct {
		Address string `json:"address"`
	}

	// response is the answer of every action. A 2xx answer may still report a failure.
	response struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
)

func (p *httpProvisioner) call(ctx context.Context, action string, in interface{}) error {
	var res response
	if err := httpx.PostJSON(ctx, p.client, p.baseURL+"/"+action, p.key, in, &res, p.retry); err != nil {
		return errors.Wrap(err, action)
	}
	if !res.OK {
		msg := res.Error
		if msg == "" {
			msg = "refused by the mail server"
		}
		return errors.Errorf("%s: %s", action, msg)
	}
	return nil
}

func (p *httpProvisioner) CreateMailbox(ctx context.Context, acct mailbox.EmailAccount, password string) error {
	return p.call(ctx, "create", createRequest{
		Address:   acct.Address,
		Password:  password,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		Kind:      acct.Kind,
	})
}

func (p *httpProvisioner) SetPassword(ctx context.Context, address, password string) error {
	return p.call(ctx, "set-password", passwordRequest{Address: address, Password: password})
}

func (p *httpProvisioner) SetSuspended(ctx context.Context, address string, suspended bool) error {
	return p.call(ctx, "suspend", suspendRequest{Address: address, Suspended: suspended})
}

func (p *httpProvisioner) DeleteMailbox(ctx context.Context, address string) error {
	return p.call(ctx, "delete", addressRequest{Address: address})
}
