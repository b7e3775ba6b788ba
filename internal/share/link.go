package share

import (
	"fmt"
	"net/url"

	"backboard/internal/domain"
)

// stateParam is the single query parameter a share link carries.
const stateParam = "state"

// Location is the injected "current page location" capability. Link building
// and bootstrap restore operate on a Location value rather than any global,
// so both are testable without a browser or a live server address.
type Location struct {
	u *url.URL
}

// ParseLocation parses an absolute URL into a Location.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parsing location %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Location{}, fmt.Errorf("location %q is not absolute", raw)
	}
	return Location{u: u}, nil
}

// String returns the location as it was parsed, query string included.
func (l Location) String() string {
	if l.u == nil {
		return ""
	}
	return l.u.String()
}

// BuildLink encodes state and appends it to the location's origin and path as
// the sole query parameter. Any query parameters or fragment already on the
// location are discarded, and the token is URL-component escaped.
func BuildLink(loc Location, state *domain.ShareableState) (string, error) {
	token, err := Encode(state)
	if err != nil {
		return "", err
	}
	u := *loc.u
	u.RawQuery = url.Values{stateParam: {token}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// ExtractToken reads the state token out of rawURL verbatim. It returns ""
// when the parameter is absent or the URL does not parse; decoding the token
// is the codec's job.
func ExtractToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(stateParam)
}
