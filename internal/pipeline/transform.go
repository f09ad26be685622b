package pipeline

import (
	"context"

	"github.com/coastwatch/hazard-monitor/internal/domain"
)

// PostTransformer implements Transformer using the domain parse and
// classification functions.
type PostTransformer struct{}

// NewTransformer creates a PostTransformer.
func NewTransformer() *PostTransformer {
	return &PostTransformer{}
}

func (t *PostTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.SocialMediaPost, error) {
	post, err := domain.ParseRawPost(raw)
	if err != nil {
		return domain.SocialMediaPost{}, err
	}
	return domain.EnrichPost(post), nil
}
