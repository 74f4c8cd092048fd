package fetch

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"tubedigest/model"
)

// Youtube fetches video details through the Data API. This is the only
// component that spends API quota; one videos.list call costs 1 unit.
type Youtube struct {
	service *youtube.Service
}

func NewYoutube(ctx context.Context, apiKey string) (*Youtube, error) {
	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &Youtube{service: service}, nil
}

func (y *Youtube) Metadata(ctx context.Context, id model.VideoID) (*Metadata, error) {
	response, err := y.service.Videos.
		List([]string{"snippet", "contentDetails"}).
		Id(string(id)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", id, err)
	}
	if len(response.Items) == 0 {
		return nil, fmt.Errorf("fetch metadata for %s: video not found", id)
	}

	item := response.Items[0]

	return &Metadata{
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		Duration:    item.ContentDetails.Duration,
		PublishedAt: item.Snippet.PublishedAt,
	}, nil
}
