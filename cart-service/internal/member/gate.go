// Package member checks with member-service that a member may use the cart.
package member

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ErrMemberNotActive covers every way a member can fail the check:
// inactive, unknown, or member-service unreachable.
var ErrMemberNotActive = errors.New("member status is not active")

const statusActive = "active"

type statusResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Status   string `json:"status"`
	MemberID int64  `json:"memberId"`
}

type Gate struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewGate(baseURL string, client *http.Client, logger zerolog.Logger) *Gate {
	return &Gate{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Check returns nil only for a member whose status is "active". It makes
// exactly one call and never retries.
func (g *Gate) Check(ctx context.Context, memberID int64) error {
	status, err := g.fetch(ctx, memberID)
	if err != nil {
		g.logger.Warn().Err(err).Int64("member_id", memberID).Msg("member status check failed")
		return fmt.Errorf("%w: %w", ErrMemberNotActive, err)
	}
	if !strings.EqualFold(status, statusActive) {
		g.logger.Info().Int64("member_id", memberID).Str("status", status).Msg("member is not active")
		return fmt.Errorf("%w: status %q", ErrMemberNotActive, status)
	}
	return nil
}

var (
	errMemberNotFound   = errors.New("member not found")
	errStatusUnreadable = errors.New("member status unreadable")
)

func (g *Gate) fetch(ctx context.Context, memberID int64) (string, error) {
	endpoint := g.baseURL + "/api/member/status/" + strconv.FormatInt(memberID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("member service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", errMemberNotFound
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("member service returned status %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %w", errStatusUnreadable, err)
	}
	if body.Status == "" {
		return "", fmt.Errorf("%w: empty status", errStatusUnreadable)
	}
	return body.Status, nil
}
