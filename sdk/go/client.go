package homewardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Homeward HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Listing represents the API listing model (partial).
type Listing struct {
	ID          string   `json:"id"`
	PetID       string   `json:"pet_id"`
	OwnerID     string   `json:"owner_id"`
	PetName     string   `json:"pet_name"`
	Species     string   `json:"species"`
	Breed       string   `json:"breed,omitempty"`
	AdoptionFee int      `json:"adoption_fee"`
	Photos      []string `json:"photos,omitempty"`
	Status      string   `json:"status"`
	ExpiresAt   *string  `json:"expires_at,omitempty"`
}

// Application represents the API application model (partial).
type Application struct {
	ID          string `json:"id"`
	ListingID   string `json:"listing_id"`
	ApplicantID string `json:"applicant_id"`
	MatchScore  int    `json:"match_score"`
	Status      string `json:"status"`
}

// Profile represents an adopter profile.
type Profile struct {
	UserID         string `json:"user_id"`
	HousingType    string `json:"housing_type,omitempty"`
	ReadinessScore int    `json:"readiness_score"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Identity is the authenticated principal.
type Identity struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// ListingFilters narrows Listings results. Zero values are omitted.
type ListingFilters struct {
	Species string
	Status  string
	MaxFee  int
	Limit   int
}

// Listings browses listings.
func (c *Client) Listings(ctx context.Context, f ListingFilters) ([]Listing, error) {
	q := url.Values{}
	if f.Species != "" {
		q.Set("species", f.Species)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.MaxFee > 0 {
		q.Set("max_fee", fmt.Sprintf("%d", f.MaxFee))
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	endpoint := "v1/listings"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Listing
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetListing fetches one listing; the call counts as a view.
func (c *Client) GetListing(ctx context.Context, id string) (Listing, error) {
	var resp Listing
	err := c.do(ctx, http.MethodGet, "v1/listings/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpsertProfile saves the caller's adopter profile.
func (c *Client) UpsertProfile(ctx context.Context, userID string, fields map[string]any) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodPut, "v1/profiles/"+url.PathEscape(userID), fields, &resp)
	return resp, err
}

// SubmitApplication applies to a listing as the authenticated actor.
func (c *Client) SubmitApplication(ctx context.Context, listingID, message string) (Application, error) {
	body := map[string]any{
		"listing_id": listingID,
		"message":    message,
	}
	var resp Application
	err := c.do(ctx, http.MethodPost, "v1/applications", body, &resp)
	return resp, err
}

// GetApplication fetches an application by id.
func (c *Client) GetApplication(ctx context.Context, id string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodGet, "v1/applications/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AdvanceApplication moves an application to a new status (listing owner only).
func (c *Client) AdvanceApplication(ctx context.Context, id, status, reason string) (Application, error) {
	body := map[string]any{
		"status": status,
		"reason": reason,
	}
	var resp Application
	err := c.do(ctx, http.MethodPost, "v1/applications/"+url.PathEscape(id)+"/advance", body, &resp)
	return resp, err
}

// WithdrawApplication withdraws the caller's application.
func (c *Client) WithdrawApplication(ctx context.Context, id string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPost, "v1/applications/"+url.PathEscape(id)+"/withdraw", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "v1/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// WhoAmI returns the authenticated principal.
func (c *Client) WhoAmI(ctx context.Context) (Identity, error) {
	var resp Identity
	err := c.do(ctx, http.MethodGet, "v1/me", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
