// Package recording retrieves call recordings from the telephony
// provider, tolerating the window where the provider reports a
// recording before its media is durably available.
package recording

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dialer-cli/pkg/twilio"
)

// ErrNoRecording is returned when every poll round completes without a
// valid recording artifact.
var ErrNoRecording = errors.New("recording: no valid recording found")

// Options configures the retriever.
type Options struct {
	PollRetries int           // poll rounds before giving up (default 5)
	PollDelay   time.Duration // delay between rounds and re-downloads (default 5s)
	MinBytes    int64         // artifacts below this size are not ready (default 2000)
	DownloadDir string        // local destination for media files
}

func (o Options) withDefaults() Options {
	if o.PollRetries <= 0 {
		o.PollRetries = 5
	}
	if o.PollDelay <= 0 {
		o.PollDelay = 5 * time.Second
	}
	if o.MinBytes <= 0 {
		o.MinBytes = 2000
	}
	if o.DownloadDir == "" {
		o.DownloadDir = "downloads"
	}
	return o
}

// Retriever polls for and downloads the recordings of a completed call.
type Retriever struct {
	client twilio.Client
	opts   Options
}

// New creates a Retriever using the given provider client.
func New(client twilio.Client, opts Options) *Retriever {
	return &Retriever{client: client, opts: opts.withDefaults()}
}

// Retrieve polls the provider for recordings of callSID, downloading
// each one found. An artifact smaller than MinBytes is treated as not
// yet ready: the retriever waits and re-downloads that artifact once
// within the round instead of restarting the poll. The first round
// producing at least one valid artifact wins; exhausting all rounds
// returns ErrNoRecording.
func (r *Retriever) Retrieve(ctx context.Context, callSID string) ([]string, error) {
	log := zap.L().With(zap.String("call_sid", callSID))

	for attempt := 1; attempt <= r.opts.PollRetries; attempt++ {
		log.Info("checking for recordings",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.opts.PollRetries),
		)

		recs, err := r.client.ListRecordings(ctx, callSID)
		if err != nil {
			log.Warn("list recordings failed", zap.Error(err))
		}

		var valid []string
		for _, rec := range recs {
			path, ok := r.download(ctx, rec, log)
			if ok {
				valid = append(valid, path)
			}
		}
		if len(valid) > 0 {
			log.Info("recordings downloaded", zap.Int("count", len(valid)))
			return valid, nil
		}

		if attempt < r.opts.PollRetries {
			if err := sleep(ctx, r.opts.PollDelay); err != nil {
				return nil, err
			}
		}
	}

	log.Warn("no valid recordings after all attempts")
	return nil, ErrNoRecording
}

// download fetches one recording, giving an undersized artifact a
// single delay-then-redownload chance within the round.
func (r *Retriever) download(ctx context.Context, rec twilio.Recording, log *zap.Logger) (string, bool) {
	for try := 0; try < 2; try++ {
		path, err := r.client.DownloadRecording(ctx, rec, r.opts.DownloadDir)
		if err != nil {
			log.Warn("download failed", zap.String("recording_sid", rec.SID), zap.Error(err))
			return "", false
		}

		size := fileSize(path)
		if size >= r.opts.MinBytes {
			log.Info("recording ready",
				zap.String("recording_sid", rec.SID),
				zap.String("path", path),
				zap.Int64("bytes", size),
			)
			return path, true
		}

		log.Warn("recording undersized, not ready yet",
			zap.String("recording_sid", rec.SID),
			zap.Int64("bytes", size),
			zap.Int64("min_bytes", r.opts.MinBytes),
		)
		if try == 0 {
			if err := sleep(ctx, r.opts.PollDelay); err != nil {
				return "", false
			}
		}
	}
	return "", false
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
