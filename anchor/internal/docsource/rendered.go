package docsource

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Rendered loads a page in headless Chrome with stealth evasions applied and
// returns the serialised DOM once the page has loaded.
type Rendered struct {
	URL string
	// RemoteURL is the DevTools websocket of an existing browser. Empty
	// launches a local headless Chrome.
	RemoteURL string
	Timeout   time.Duration
}

func (r *Rendered) Kind() string     { return "rendered" }
func (r *Rendered) Location() string { return r.URL }

func (r *Rendered) Fetch(ctx context.Context) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	wsURL := r.RemoteURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("docsource: launch chrome: %w", err)
		}
		wsURL = u
		defer l.Kill()
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("docsource: connect chrome: %w", err)
	}
	defer b.Close()

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("docsource: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(r.URL); err != nil {
		return nil, fmt.Errorf("docsource: navigate %s: %w", r.URL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("docsource: wait load %s: %w", r.URL, err)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("docsource: read DOM %s: %w", r.URL, err)
	}
	html := res.Value.Str()
	if len(html) > MaxDocumentBytes {
		return nil, fmt.Errorf("docsource: %s exceeds %d bytes", r.URL, MaxDocumentBytes)
	}
	return []byte(html), nil
}
