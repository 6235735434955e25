// Package genaisvc implements core.ModelService against the configured provider.
package genaisvc

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/attendr/core"
)

const (
	ProviderGemini  = "gemini"
	ProviderREST    = "rest"
	ProviderConsole = "console"
)

// Service is a model service that may hold a connection to release.
type Service interface {
	core.ModelService
	io.Closer
}

type nopCloser struct {
	core.ModelService
}

func (nopCloser) Close() error { return nil }

// New picks the provider from conf.GenAI.Provider.
func New(ctx context.Context, conf *core.Config) (Service, error) {
	switch conf.GenAI.Provider {
	case ProviderGemini:
		return newGeminiService(ctx, conf.GenAI)
	case ProviderREST:
		return nopCloser{newRESTService(conf.GenAI, nil)}, nil
	case ProviderConsole, "":
		return nopCloser{NewConsoleService()}, nil
	default:
		return nil, errors.Errorf("unknown genai provider %q", conf.GenAI.Provider)
	}
}
