package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"

	"route_editor/internal/geo"
)

// DefaultProfile is the travel profile used when none is given.
const DefaultProfile = "driving-car"

var profiles = map[string]bool{
	"driving-car":     true,
	"driving-hgv":     true,
	"cycling-regular": true,
	"foot-walking":    true,
}

var (
	ErrNotConfigured      = errors.New("directions: no API key configured")
	ErrUnsupportedProfile = errors.New("directions: unsupported travel profile")
	ErrNoRoute            = errors.New("directions: no route returned")
)

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to an OpenRouteService compatible directions API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	log        *logrus.Entry
}

// Result is a computed path between two points.
type Result struct {
	Coordinates     []geo.Coordinate `json:"coordinates"`
	DistanceMeters  float64          `json:"distance_meters"`
	DurationSeconds float64          `json:"duration_seconds"`
	Profile         string           `json:"profile"`
	Fallback        bool             `json:"fallback"`
}

// NewClient creates a directions client with a bounded HTTP timeout.
func NewClient(apiKey, baseURL string) *Client {
	return NewClientWithHTTPDoer(apiKey, baseURL, &http.Client{Timeout: 15 * time.Second})
}

// NewClientWithHTTPDoer creates a client using doer for requests.
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
		log:        logrus.WithField("component", "directions"),
	}
}

type routeResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Route asks the directions API for a path from one coordinate to another.
func (c *Client) Route(ctx context.Context, from, to geo.Coordinate, profile string) (Result, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if !profiles[profile] {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedProfile, profile)
	}
	if c.apiKey == "" {
		return Result{}, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]any{
		"coordinates": [][2]float64{geo.ToLngLat(from), geo.ToLngLat(to)},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed routeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return Result{}, fmt.Errorf("directions API returned %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Routes) == 0 {
		return Result{}, ErrNoRoute
	}

	first := parsed.Routes[0]
	decoded, _, err := polyline.DecodeCoords([]byte(first.Geometry))
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode route geometry: %w", err)
	}
	coords := make([]geo.Coordinate, 0, len(decoded))
	for _, pair := range decoded {
		coords = append(coords, geo.Coordinate{Latitude: pair[0], Longitude: pair[1]})
	}
	if len(coords) < 2 {
		return Result{}, ErrNoRoute
	}

	return Result{
		Coordinates:     coords,
		DistanceMeters:  first.Summary.Distance,
		DurationSeconds: first.Summary.Duration,
		Profile:         profile,
	}, nil
}

// RouteOrFallback is Route degraded to a straight line on any failure.
func (c *Client) RouteOrFallback(ctx context.Context, from, to geo.Coordinate, profile string) Result {
	res, err := c.Route(ctx, from, to, profile)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"from":    from,
			"to":      to,
			"profile": profile,
		}).Warn("Directions unavailable, using straight line.")
		res = StraightLine(from, to)
		res.Profile = profile
	}
	return res
}

// StraightLine joins two coordinates directly.
func StraightLine(from, to geo.Coordinate) Result {
	return Result{
		Coordinates:    []geo.Coordinate{from, to},
		DistanceMeters: geo.Distance(from, to),
		Fallback:       true,
	}
}
