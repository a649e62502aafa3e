package download

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/log"
	"github.com/dgellow/cpa-front/internal/opener"
)

// DefaultConcurrency is the number of parallel transfers in DownloadMany
const DefaultConcurrency = 4

// Options configure a Downloader. Only Saver is required.
type Options struct {
	// Native is tried first; on failure the file goes to Saver
	Native Saver
	Saver  Saver
	// Navigator follows pre-signed URLs. Defaults to a FetchNavigator using Saver.
	Navigator Navigator
	// Opener, when set, opens each saved file once it is written
	Opener opener.Opener
}

// Outcome describes one finished download
type Outcome struct {
	Path        string
	Filename    string
	ContentType string
	Size        int
	// RedirectURL is set when the server sent a pre-signed URL; Path is then
	// whatever the navigator returned
	RedirectURL string
}

// Downloader fetches files through the API client and stores them
type Downloader struct {
	client    *apiclient.Client
	native    Saver
	saver     Saver
	navigator Navigator
	opener    opener.Opener
}

// New creates a Downloader
func New(client *apiclient.Client, opts Options) *Downloader {
	d := &Downloader{
		client:    client,
		native:    opts.Native,
		saver:     opts.Saver,
		navigator: opts.Navigator,
		opener:    opts.Opener,
	}
	if d.navigator == nil {
		d.navigator = &FetchNavigator{Client: client, Saver: d.saver}
	}
	return d
}

// Download fetches path and either saves the file or follows the pre-signed URL the
// server answered with
func (d *Downloader) Download(ctx context.Context, path string) (*Outcome, error) {
	resp, err := d.client.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res, err := Resolve(resp, path)
	if err != nil {
		return nil, err
	}

	if res.IsRedirect() {
		log.LogDebugWithFields("download", "Following pre-signed download URL", map[string]any{
			"path": path,
		})
		location, err := d.navigator.Navigate(ctx, res.RedirectURL)
		if err != nil {
			return nil, err
		}
		return &Outcome{Path: location, RedirectURL: res.RedirectURL}, nil
	}

	saved, err := d.save(ctx, res)
	if err != nil {
		return nil, err
	}

	log.LogInfoWithFields("download", "File saved", map[string]any{
		"path":  saved,
		"bytes": len(res.Data),
	})

	if d.opener != nil {
		if err := d.opener.Open(saved); err != nil {
			log.LogWarnWithFields("download", "Could not open saved file", map[string]any{
				"path":  saved,
				"error": err.Error(),
			})
		}
	}

	return &Outcome{
		Path:        saved,
		Filename:    res.Filename,
		ContentType: res.ContentType,
		Size:        len(res.Data),
	}, nil
}

func (d *Downloader) save(ctx context.Context, res *Result) (string, error) {
	if d.native != nil {
		saved, err := d.native.Save(ctx, res.Filename, res.Data)
		if err == nil {
			return saved, nil
		}
		log.LogDebugWithFields("download", "Native saver failed, using download directory", map[string]any{
			"error": err.Error(),
		})
	}
	return d.saver.Save(ctx, res.Filename, res.Data)
}

// DownloadMany fetches paths with at most concurrency transfers in flight. Outcomes
// line up with paths; the first failure cancels the rest and is returned.
func (d *Downloader) DownloadMany(ctx context.Context, paths []string, concurrency int) ([]*Outcome, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	outcomes := make([]*Outcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, p := range paths {
		g.Go(func() error {
			out, err := d.Download(gctx, p)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}

	return outcomes, g.Wait()
}
