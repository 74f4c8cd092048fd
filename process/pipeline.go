// Package process generates and stores one summary per video.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tubedigest/fetch"
	"tubedigest/model"
	"tubedigest/storage"
)

var (
	// ErrInFlight means another worker holds the video's pending record.
	ErrInFlight = errors.New("video is already being processed")
	// ErrGenerationFailed wraps metadata or summarizer failures after the
	// record has been marked failed.
	ErrGenerationFailed = errors.New("could not generate summary")
)

type Summarizer interface {
	Summarize(ctx context.Context, md *fetch.Metadata, languageHint string) (string, error)
}

// Result is what the caller gets back, whether freshly generated or
// served from the store.
type Result struct {
	VideoID model.VideoID
	Title   string
	Channel model.ChannelRef
	Summary string
	Cached  bool
}

// Pipeline runs the summary flow for one video: look it up, claim it,
// fetch metadata, summarize, persist the outcome.
type Pipeline struct {
	videos     storage.VideoStore
	metadata   fetch.MetadataFetcher
	summarizer Summarizer
	timeout    time.Duration
	logger     *slog.Logger
}

func NewPipeline(videos storage.VideoStore, metadata fetch.MetadataFetcher, summarizer Summarizer, timeout time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		videos:     videos,
		metadata:   metadata,
		summarizer: summarizer,
		timeout:    timeout,
		logger:     logger,
	}
}

// Process returns the video's summary. A completed record short-circuits
// to the stored text. Otherwise the video is claimed, so concurrent
// calls for the same id get ErrInFlight, and a failed attempt leaves a
// failed record behind for a later retry.
func (p *Pipeline) Process(ctx context.Context, id model.VideoID, channel model.ChannelRef, publishedAt time.Time, languageHint string) (*Result, error) {
	rec, err := p.videos.Lookup(ctx, id)
	switch {
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("process video %s: %w", id, err)
	case err == nil && rec.State == model.StateCompleted:
		p.logger.Info("serving stored summary", "video", id)
		return &Result{
			VideoID: id,
			Channel: rec.ChannelRef,
			Summary: rec.SummaryText,
			Cached:  true,
		}, nil
	}

	lease, err := p.videos.BeginProcessing(ctx, id, channel, publishedAt)
	switch {
	case errors.Is(err, storage.ErrAlreadyInFlight):
		return nil, ErrInFlight
	case err != nil:
		return nil, fmt.Errorf("process video %s: %w", id, err)
	}

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	md, err := p.metadata.Metadata(genCtx, id)
	if err != nil {
		return nil, p.abort(ctx, lease, id, "metadata", err)
	}

	summary, err := p.summarizer.Summarize(genCtx, md, languageHint)
	if err != nil {
		return nil, p.abort(ctx, lease, id, "summarize", err)
	}

	if err := lease.Complete(ctx, summary); err != nil {
		return nil, fmt.Errorf("process video %s: %w", id, err)
	}
	p.logger.Info("generated summary", "video", id, "channel", channel)

	return &Result{
		VideoID: id,
		Title:   md.Title,
		Channel: channel,
		Summary: summary,
	}, nil
}

func (p *Pipeline) abort(ctx context.Context, lease *storage.Lease, id model.VideoID, stage string, cause error) error {
	if err := lease.Fail(ctx, cause.Error()); err != nil {
		p.logger.Error("could not mark video failed", "video", id, "error", err)
	}
	p.logger.Error("summary generation failed", "video", id, "stage", stage, "error", cause)

	return fmt.Errorf("%w: %s: %s", ErrGenerationFailed, stage, cause)
}
