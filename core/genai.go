package core

import "context"

// Image is the source screenshot handed to the extraction model.
type Image struct {
	MimeType string
	Data     []byte
}

// ModelService is the boundary to the external vision and advice models.
// Both calls return the raw reply text; interpreting it is left to the caller.
type ModelService interface {
	Extract(ctx context.Context, prompt string, img Image) (string, error)
	Advise(ctx context.Context, prompt string) (string, error)
}
