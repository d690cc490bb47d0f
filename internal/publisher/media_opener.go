package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileOpener resolves attachment uris as paths relative to the export
// directory. Facebook exports ship the media files alongside the posts.
func FileOpener(dir string) MediaOpener {
	return func(_ context.Context, uri string) (io.ReadCloser, string, error) {
		file, err := os.Open(filepath.Join(dir, uri))
		if err != nil {
			return nil, "", err
		}
		return file, filepath.Base(uri), nil
	}
}

// URLOpener fetches attachment uris over HTTP. Mastodon exports reference
// each attachment by the URL it was originally served from.
func URLOpener(client *http.Client) MediaOpener {
	return func(ctx context.Context, uri string) (io.ReadCloser, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, "", err
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, "", fmt.Errorf("failed to fetch media %s: %s", uri, resp.Status)
		}
		name := path.Base(strings.SplitN(uri, "?", 2)[0])
		return resp.Body, name, nil
	}
}
