package gensvc

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/content"
	"github.com/trezcool/chuo/services/httpx"
)

// httpGenerator calls the text generation function with {"prompt": ...} and expects {"text": ...}.
type httpGenerator struct {
	url    string
	key    string
	client *http.Client
	retry  httpx.RetryConfig
}

var _ content.Generator = (*httpGenerator)(nil)

func NewHTTPGenerator(conf *core.Config) *httpGenerator {
	return &httpGenerator{
		url:    conf.Content.GeneratorURL,
		key:    conf.Content.GeneratorKey,
		client: &http.Client{Timeout: 2 * time.Minute},
		retry:  httpx.DefaultRetryConfig(),
	}
}

type (
	generateRequest struct {
		Prompt string `json:"prompt"`
	}

	generateResponse struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
)

func (g *httpGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var res generateResponse
	if err := httpx.PostJSON(ctx, g.client, g.url, g.key, generateRequest{Prompt: prompt}, &res, g.retry); err != nil {
		return "", errors.Wrap(err, "generating text")
	}
	if res.Error != "" {
		return "", errors.New(res.Error)
	}
	return res.Text, nil
}
