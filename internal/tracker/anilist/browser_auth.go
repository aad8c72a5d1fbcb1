package anilist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/browser"
)

// OpenURL opens a URL in the user's browser. Tests replace it.
var OpenURL = browser.OpenURL

// AuthenticateWithBrowser opens the AniList authorization page and reads
// the access token the user pastes back from AniList's PIN page.
func AuthenticateWithBrowser(ctx context.Context, client *Client, in io.Reader, out io.Writer) (*Profile, error) {
	authURL := client.AuthURL()

	fmt.Fprintln(out, "Opening AniList in your browser to authorize yoru.")
	fmt.Fprintf(out, "If nothing opens, visit:\n\n  %s\n\n", authURL)
	if err := OpenURL(authURL); err != nil {
		client.logger.Debug("failed to open browser", "error", err)
	}

	fmt.Fprint(out, "Paste the access token here: ")

	tokenCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			errCh <- fmt.Errorf("failed to read token: %w", err)
			return
		}
		tokenCh <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case token := <-tokenCh:
		return client.Login(ctx, token)
	}
}
