package genaisvc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/trezcool/attendr/core"
)

const maxReplyBytes = 4 << 20

type (
	restService struct {
		endpoint   string
		apiKey     string
		model      string
		conf       core.GenAIConfig
		httpClient *http.Client
	}

	restPart struct {
		Text       string      `json:"text,omitempty"`
		InlineData *restInline `json:"inline_data,omitempty"`
	}

	restInline struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	}

	restContent struct {
		Parts []restPart `json:"parts"`
	}

	restRequest struct {
		Contents         []restContent          `json:"contents"`
		GenerationConfig map[string]interface{} `json:"generationConfig,omitempty"`
	}
)

var _ core.ModelService = (*restService)(nil)

// newRESTService talks to a generateContent endpoint directly. Extract hands back the raw
// response envelope; the extraction parser knows how to dig the text out of it.
func newRESTService(conf core.GenAIConfig, httpClient *http.Client) *restService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: conf.Timeout}
	}
	return &restService{
		endpoint:   strings.TrimRight(conf.Endpoint, "/"),
		apiKey:     conf.APIKey,
		model:      conf.Model,
		conf:       conf,
		httpClient: httpClient,
	}
}

func (svc *restService) Extract(ctx context.Context, prompt string, img core.Image) (string, error) {
	parts := []restPart{
		{Text: prompt},
		{InlineData: &restInline{MimeType: img.MimeType, Data: base64.StdEncoding.EncodeToString(img.Data)}},
	}
	return svc.generate(ctx, parts)
}

// Advise unwraps the first candidate text. The advice reply goes to the user as is.
func (svc *restService) Advise(ctx context.Context, prompt string) (string, error) {
	body, err := svc.generate(ctx, []restPart{{Text: prompt}})
	if err != nil {
		return "", err
	}
	text := gjson.Get(body, "candidates.0.content.parts.0.text")
	if !text.Exists() || strings.TrimSpace(text.String()) == "" {
		return "", errors.Wrap(core.ErrUpstreamUnavailable, "no candidate text in reply")
	}
	return text.String(), nil
}

func (svc *restService) generate(ctx context.Context, parts []restPart) (string, error) {
	payload, err := json.Marshal(restRequest{
		Contents:         []restContent{{Parts: parts}},
		GenerationConfig: map[string]interface{}{"temperature": svc.conf.Temperature},
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding request")
	}

	u := fmt.Sprintf("%s/models/%s:generateContent", svc.endpoint, url.PathEscape(svc.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if svc.apiKey != "" {
		req.Header.Set("x-goog-api-key", svc.apiKey)
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(core.ErrUpstreamUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", errors.Wrap(core.ErrUpstreamUnavailable, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = core.Truncate(strings.TrimSpace(string(body)), 200)
		}
		return "", errors.Wrapf(core.ErrUpstreamUnavailable, "status %d: %s", resp.StatusCode, msg)
	}
	return string(body), nil
}
