package browser

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// navTimeout bounds each navigation. Waiting on DOMContentLoaded
	// instead of network idle avoids hangs on pages with long-polling
	// or analytics chatter.
	navTimeout = 30 * time.Second

	settleMin = 1 * time.Second
	settleMax = 3 * time.Second

	scrollDelayMin = 800 * time.Millisecond
	scrollDelayMax = 2500 * time.Millisecond

	// scrollFraction of the viewport height per scroll step. Partial
	// steps with jittered pacing read as human scrolling to bot
	// detectors and give lazy loaders time to fire.
	scrollFraction = 0.7
)

// Navigator drives one page with human-like pacing.
type Navigator struct {
	page *rod.Page
	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewNavigator wraps a page.
func NewNavigator(page *rod.Page) *Navigator {
	return &Navigator{page: page, sleep: time.Sleep}
}

// Page returns the underlying page for direct evaluation.
func (n *Navigator) Page() *rod.Page {
	return n.page
}

// Goto navigates to url, waits for DOMContentLoaded within the navigation
// timeout, then pauses a randomized 1-3s settle delay so client-side
// rendering can finish before any snapshot is taken.
func (n *Navigator) Goto(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	page := n.page.Context(navCtx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	wait()

	if err := navCtx.Err(); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}

	n.sleep(jitter(settleMin, settleMax))
	return nil
}

// ScrollDown performs count incremental scrolls of about 70% viewport
// height each, with randomized 0.8-2.5s pauses between steps. Used to
// trigger lazy-loaded content before snapshotting.
func (n *Navigator) ScrollDown(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := n.page.Context(ctx).Eval(fmt.Sprintf(
			`() => window.scrollBy({ top: window.innerHeight * %.2f, behavior: 'smooth' })`,
			scrollFraction))
		if err != nil {
			return fmt.Errorf("browser: scroll step %d: %w", i+1, err)
		}
		n.sleep(jitter(scrollDelayMin, scrollDelayMax))
	}
	return nil
}

// CurrentURL returns the page's current location, empty on failure.
func (n *Navigator) CurrentURL(ctx context.Context) string {
	info, err := n.page.Context(ctx).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func jitter(min, max time.Duration) time.Duration {
	return min + time.Duration(rand.Int64N(int64(max-min)))
}
