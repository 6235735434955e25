package genaisvc

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/attendr/core"
)

type geminiService struct {
	client *genai.Client
	model  *genai.GenerativeModel
	conf   core.GenAIConfig
}

var _ core.ModelService = (*geminiService)(nil)

func newGeminiService(ctx context.Context, conf core.GenAIConfig) (*geminiService, error) {
	if conf.APIKey == "" {
		return nil, errors.New("genai.apiKey is required for the gemini provider")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(conf.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	model := client.GenerativeModel(conf.Model)
	model.SetTemperature(conf.Temperature)
	return &geminiService{client: client, model: model, conf: conf}, nil
}

func (svc *geminiService) Extract(ctx context.Context, prompt string, img core.Image) (string, error) {
	return svc.generate(ctx, genai.Text(prompt), genai.Blob{MIMEType: img.MimeType, Data: img.Data})
}

func (svc *geminiService) Advise(ctx context.Context, prompt string) (string, error) {
	return svc.generate(ctx, genai.Text(prompt))
}

func (svc *geminiService) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	if svc.conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.conf.Timeout)
		defer cancel()
	}

	resp, err := svc.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", errors.Wrap(core.ErrUpstreamUnavailable, err.Error())
	}
	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", errors.Wrap(core.ErrUpstreamUnavailable, "empty model reply")
	}
	return text, nil
}

func (svc *geminiService) Close() error {
	return svc.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}
