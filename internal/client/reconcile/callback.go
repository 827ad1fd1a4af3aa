package reconcile

import (
	"context"
	"fmt"
	"net/url"
)

// Query (or fragment) parameters an identity provider appends when it
// redirects back after a login round trip.
var callbackParams = []string{
	"code",
	"state",
	"session_state",
	"id_token",
	"access_token",
	"error",
	"error_description",
}

// StripCallback removes provider callback parameters from rawURL. detected
// reports whether any were present.
func StripCallback(rawURL string) (clean string, detected bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("parse callback url: %w", err)
	}

	q := u.Query()
	if dropParams(q) {
		u.RawQuery = q.Encode()
		detected = true
	}

	// implicit-flow providers put the parameters in the fragment
	if fq, ferr := url.ParseQuery(u.Fragment); u.Fragment != "" && ferr == nil && dropParams(fq) {
		u.Fragment = fq.Encode()
		u.RawFragment = ""
		detected = true
	}

	if !detected {
		return rawURL, false, nil
	}
	return u.String(), true, nil
}

func dropParams(v url.Values) bool {
	found := false
	for _, p := range callbackParams {
		if v.Has(p) {
			v.Del(p)
			found = true
		}
	}
	return found
}

// HandleCallback is called with the current location on every load. When
// it carries provider parameters, the episode ends: guards reset and any
// in-flight run is superseded. The returned URL has the parameters removed
// and should replace the visible one before Run is called again.
func (o *Orchestrator) HandleCallback(ctx context.Context, rawURL string) (string, bool, error) {
	clean, detected, err := StripCallback(rawURL)
	if err != nil || !detected {
		return rawURL, false, err
	}

	o.mu.Lock()
	o.resetLocked()
	ep := o.episode
	o.mu.Unlock()

	o.log.Info(ctx, "provider callback detected; guards reset", "episode", ep)
	o.ui.Status(PhaseIdle)
	return clean, true, nil
}
