package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wisdomwalk-chat-service/internal/models"
)

// UserDirectory is the read-only lookup of display identities from the
// external user service.
type UserDirectory interface {
	GetUser(ctx context.Context, userID int64) (models.UserProfile, error)
	BulkUsers(ctx context.Context, ids []int64) (map[int64]models.UserProfile, error)
}

// HTTPClient calls the user service's internal JSON API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs an HTTPClient.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GetUser fetches one user profile.
func (c *HTTPClient) GetUser(ctx context.Context, userID int64) (models.UserProfile, error) {
	users, err := c.BulkUsers(ctx, []int64{userID})
	if err != nil {
		return models.UserProfile{}, err
	}
	user, ok := users[userID]
	if !ok {
		return models.UserProfile{}, fmt.Errorf("user %d not found", userID)
	}
	return user, nil
}

// BulkUsers fetches multiple profiles in one call, keyed by id. Unknown ids
// are simply absent from the result.
func (c *HTTPClient) BulkUsers(ctx context.Context, ids []int64) (map[int64]models.UserProfile, error) {
	result := make(map[int64]models.UserProfile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	params := make([]string, 0, len(ids))
	for _, id := range ids {
		params = append(params, strconv.FormatInt(id, 10))
	}
	endpoint := c.baseURL + "/internal/users?ids=" + url.QueryEscape(strings.Join(params, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user directory returned status %d", resp.StatusCode)
	}

	var payload struct {
		Users []models.UserProfile `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode user directory response: %w", err)
	}

	for _, u := range payload.Users {
		result[u.ID] = u
	}
	return result, nil
}
