package fetch

import (
	"context"

	"tubedigest/model"
)

// Metadata is the subset of video details that feeds the summarizer.
type Metadata struct {
	Title       string
	Description string
	Duration    string
	PublishedAt string
}

type MetadataFetcher interface {
	Metadata(ctx context.Context, id model.VideoID) (*Metadata, error)
}
