package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// ShareRole is the access level granted by a share.
type ShareRole string

const (
	RoleEditor    ShareRole = "editor"
	RoleCommenter ShareRole = "commenter"
	RoleReader    ShareRole = "reader"
)

// Share grants a user, identified by email, access to a chart.
type Share struct {
	ID      string    `json:"id,omitempty"`
	ChartID string    `json:"chart_id"`
	Email   string    `json:"email"`
	Role    ShareRole `json:"role"`
}

// Validate checks a share before it is sent to the remote store.
func (s Share) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ChartID, validation.Required),
		validation.Field(&s.Email, validation.Required, is.Email),
		validation.Field(&s.Role, validation.Required,
			validation.In(RoleEditor, RoleCommenter, RoleReader)),
	)
}

// ShareChart creates a share entry for a chart. Disabled clients no-op.
func (c *Client) ShareChart(ctx context.Context, chartID, email string, role ShareRole) error {
	share := Share{ChartID: chartID, Email: email, Role: role}
	if err := share.Validate(); err != nil {
		return fmt.Errorf("invalid share: %w", err)
	}
	if c.disabled {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/shares", nil, share, nil)
}

// RevokeShare removes a share entry by its id. Disabled clients no-op.
func (c *Client) RevokeShare(ctx context.Context, id string) error {
	if c.disabled {
		return nil
	}
	path := "/rest/v1/shares?id=eq." + url.QueryEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ListShares returns every share entry for a chart. Disabled clients return
// an empty list.
func (c *Client) ListShares(ctx context.Context, chartID string) ([]Share, error) {
	if c.disabled {
		return nil, nil
	}
	path := "/rest/v1/shares?select=id,chart_id,email,role&chart_id=eq." + url.QueryEscape(chartID)
	var out []Share
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
