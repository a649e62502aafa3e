package download

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/opener"
)

// ErrRedirectLoop is returned when a pre-signed URL answers with yet another
// download instruction
var ErrRedirectLoop = errors.New("pre-signed URL returned another redirect")

// Navigator follows a pre-signed download URL and returns where the result went: a
// saved path or the URL that was handed off.
type Navigator interface {
	Navigate(ctx context.Context, url string) (string, error)
}

// FetchNavigator downloads the pre-signed URL itself and saves it. Absolute URLs go
// out without credentials.
type FetchNavigator struct {
	Client *apiclient.Client
	Saver  Saver
}

func (n *FetchNavigator) Navigate(ctx context.Context, url string) (string, error) {
	resp, err := n.Client.Download(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	res, err := Resolve(resp, url)
	if err != nil {
		return "", err
	}
	if res.IsRedirect() {
		return "", ErrRedirectLoop
	}
	return n.Saver.Save(ctx, res.Filename, res.Data)
}

// BrowserNavigator opens the pre-signed URL in the user's browser
type BrowserNavigator struct {
	Opener opener.Opener
}

func (n *BrowserNavigator) Navigate(_ context.Context, url string) (string, error) {
	if err := n.Opener.Open(url); err != nil {
		return "", fmt.Errorf("failed to open download URL: %w", err)
	}
	return url, nil
}
