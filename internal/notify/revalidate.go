package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Revalidator asks the storefront to drop cached pages by tag.
type Revalidator struct {
	http *resty.Client
	url  string
}

func NewRevalidator(url, token string, timeout time.Duration) *Revalidator {
	c := resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Revalidator{http: c, url: url}
}

// Revalidate is a no-op when no endpoint is configured.
func (r *Revalidator) Revalidate(ctx context.Context, tags []string) error {
	if r.url == "" {
		return nil
	}
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(map[string][]string{"tags": tags}).
		Post(r.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("revalidate: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
