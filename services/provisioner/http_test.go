package provisionsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/mailbox"
	"github.com/trezcool/chuo/services/httpx"
)

func TestHTTPProvisioner(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k3y", r.Header.Get("Authorization"))
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, r.URL.Path)

		switch {
		case body["address"] == "taken@chuo.ac":
			_, _ = w.Write([]byte(`{"ok": false, "error": "mailbox already exists"}`))
		case body["address"] == "mute@chuo.ac":
			_, _ = w.Write([]byte(`{"ok": false}`))
		case r.URL.Path == "/create":
			assert.Equal(t, "Ada", body["first_name"])
			assert.Equal(t, mailbox.KindStudent, body["kind"])
			_, _ = w.Write([]byte(`{"ok": true}`))
		case r.URL.Path == "/suspend":
			assert.Equal(t, true, body["suspended"])
			_, _ = w.Write([]byte(`{"ok": true}`))
		default:
			_, _ = w.Write([]byte(`{"ok": true}`))
		}
	}))
	defer srv.Close()

	p := NewHTTPProvisioner(&core.Config{Mailbox: core.MailboxConfig{ProvisionerURL: srv.URL + "/", ProvisionerKey: "k3y"}})
	p.retry = httpx.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	ctx := context.Background()

	acct := mailbox.EmailAccount{Address: "ada.lovelace@chuo.ac", FirstName: "Ada", LastName: "Lovelace", Kind: mailbox.KindStudent}
	require.NoError(t, p.CreateMailbox(ctx, acct, "Tmp#Pass123"))
	require.NoError(t, p.SetPassword(ctx, acct.Address, "N3w#Pass123"))
	require.NoError(t, p.SetSuspended(ctx, acct.Address, true))
	require.NoError(t, p.DeleteMailbox(ctx, acct.Address))
	assert.Equal(t, []string{"/create", "/set-password", "/suspend", "/delete"}, got)

	err := p.DeleteMailbox(ctx, "taken@chuo.ac")
	if assert.Error(t, err) {
		assert.Equal(t, "delete: mailbox already exists", err.Error())
	}
	err = p.SetPassword(ctx, "mute@chuo.ac", "x")
	if assert.Error(t, err) {
		assert.Equal(t, "set-password: refused by the mail server", err.Error())
	}
}
