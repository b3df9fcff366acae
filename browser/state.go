package browser

import (
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// StorageState is the serializable browser state captured after a
// successful login and replayed on later visits. Cookies carry the
// session; origin storage is not captured because headless replay only
// needs the cookie jar to stay authenticated.
type StorageState struct {
	Cookies    []*proto.NetworkCookie `json:"cookies"`
	CapturedAt time.Time              `json:"capturedAt"`
}

// CaptureState snapshots the browser's cookie jar.
func (b *Browser) CaptureState() (*StorageState, error) {
	cookies, err := b.Cookies()
	if err != nil {
		return nil, err
	}
	return &StorageState{Cookies: cookies, CapturedAt: time.Now().UTC()}, nil
}

// RestoreState replays a captured state into the browser.
func (b *Browser) RestoreState(state *StorageState) error {
	if state == nil || len(state.Cookies) == 0 {
		return nil
	}
	return b.SetCookies(state.Cookies)
}
