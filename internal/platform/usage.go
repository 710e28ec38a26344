package platform

import (
	"context"
	"net/http"
)

// PathLimitInfo is the daily usage endpoint.
const PathLimitInfo = "/api/tasks/limit/info"

// LimitInfo is the user's daily usage.
type LimitInfo struct {
	DailyLimit int `json:"daily_limit"`
	UsedToday  int `json:"used_today"`
}

// Percentage returns UsedToday as a percentage of DailyLimit, or 0 when
// the limit is not positive.
func (l LimitInfo) Percentage() float64 {
	if l.DailyLimit <= 0 {
		return 0
	}
	return float64(l.UsedToday) / float64(l.DailyLimit) * 100
}

// LimitInfo fetches the daily usage, authenticated with the bearer
// identity token.
func (c *Client) LimitInfo(ctx context.Context, bearer string) (*LimitInfo, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, PathLimitInfo, nil, bearer)
	if err != nil {
		return nil, err
	}

	var info LimitInfo
	if err := c.parseResponse(resp, http.MethodGet, PathLimitInfo, &info); err != nil {
		return nil, err
	}

	return &info, nil
}
