package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rxaigc/vibesub/internal/identity"
	"github.com/rxaigc/vibesub/internal/ux"
)

var errNotSignedIn = ux.NewErrorWithSuggestion(stderrors.New("not signed in"), "Run 'vibesub login' first")

func textFormat(s *services) bool {
	return s.cc.Format == "" || s.cc.Format == "text"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// statusReport is the output of the status command.
type statusReport struct {
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	Email         string     `json:"email,omitempty" yaml:"email,omitempty"`
	UserID        string     `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	DisplayName   string     `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Provider      string     `json:"provider,omitempty" yaml:"provider,omitempty"`
	ServerSession bool       `json:"server_session" yaml:"server_session"`
	TokenExpires  *time.Time `json:"token_expires,omitempty" yaml:"token_expires,omitempty"`
}

func (r statusReport) Fields() []ux.Field {
	fields := []ux.Field{
		{Label: "Email", Value: r.Email},
		{Label: "User ID", Value: r.UserID},
	}
	if r.DisplayName != "" {
		fields = append(fields, ux.Field{Label: "Name", Value: r.DisplayName})
	}
	fields = append(fields,
		ux.Field{Label: "Provider", Value: r.Provider},
		ux.Field{Label: "Server session", Value: yesNo(r.ServerSession)},
	)
	if r.TokenExpires != nil {
		fields = append(fields, ux.Field{Label: "Token expires", Value: r.TokenExpires.Local().Format(time.RFC3339)})
	}
	return fields
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in account",
		Long: `Show the signed-in account. The profile is refreshed from the identity
provider; the cached profile is shown if that fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, runStatus)
		},
	}
}

func runStatus(ctx context.Context, s *services) error {
	user := s.store.Snapshot().User
	if user == nil {
		if textFormat(s) {
			return s.formatter.Format(s.printer.T("status.signed_out"))
		}
		return s.formatter.Format(statusReport{})
	}

	if fresh, err := s.identity.Reload(ctx); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "profile refresh failed; showing cached profile")
	} else {
		user = fresh
	}

	report := statusReport{
		Authenticated: true,
		Email:         user.Email,
		UserID:        user.UID,
		DisplayName:   user.DisplayName,
		Provider:      user.ProviderID,
		ServerSession: s.jar.HasSession(s.cfg.API.BaseURL),
	}
	if token, err := s.store.IDToken(ctx, false); err == nil {
		if claims, err := identity.ParseClaims(token); err == nil && claims.ExpiresAt != nil {
			expires := claims.ExpiresAt.Time
			report.TokenExpires = &expires
		}
	}
	return s.formatter.Format(report)
}

// tokenReport is the output of token --show.
type tokenReport struct {
	Subject     string    `json:"subject" yaml:"subject"`
	Email       string    `json:"email,omitempty" yaml:"email,omitempty"`
	Issuer      string    `json:"issuer" yaml:"issuer"`
	IssuedAt    time.Time `json:"issued_at" yaml:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at" yaml:"expires_at"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
}

func (r tokenReport) Fields() []ux.Field {
	return []ux.Field{
		{Label: "Subject", Value: r.Subject},
		{Label: "Email", Value: r.Email},
		{Label: "Issuer", Value: r.Issuer},
		{Label: "Issued", Value: r.IssuedAt.Local().Format(time.RFC3339)},
		{Label: "Expires", Value: r.ExpiresAt.Local().Format(time.RFC3339)},
		{Label: "Fingerprint", Value: r.Fingerprint},
	}
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print the identity token",
		Long: `Print the current identity token, refreshing it when it is about to
expire. Use --show to print its claims instead of the token itself.

Examples:
  curl -H "Authorization: Bearer $(vibesub token)" ...
  vibesub token --refresh --show`,
		RunE: runToken,
	}
	cmd.Flags().Bool("refresh", false, "force a token refresh")
	cmd.Flags().Bool("show", false, "print the token claims")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	show, _ := cmd.Flags().GetBool("show")

	return withServices(cmd, func(ctx context.Context, s *services) error {
		token, err := s.store.IDToken(ctx, refresh)
		if err != nil {
			return err
		}
		if token == "" {
			return errNotSignedIn
		}
		s.logger.DebugContext(ctx, "identity token ready", "fingerprint", identity.Fingerprint(token), "forced", refresh)

		if !show {
			if textFormat(s) {
				return s.formatter.Format(token)
			}
			return s.formatter.Format(map[string]string{"id_token": token})
		}

		claims, err := identity.ParseClaims(token)
		if err != nil {
			return err
		}
		report := tokenReport{
			Subject:     claims.Subject,
			Email:       claims.Email,
			Issuer:      claims.Issuer,
			Fingerprint: identity.Fingerprint(token),
		}
		if claims.IssuedAt != nil {
			report.IssuedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			report.ExpiresAt = claims.ExpiresAt.Time
		}
		return s.formatter.Format(report)
	})
}

// usageReport is the output of the usage command.
type usageReport struct {
	UsedToday  int       `json:"used_today" yaml:"used_today"`
	DailyLimit int       `json:"daily_limit" yaml:"daily_limit"`
	Percentage float64   `json:"percentage" yaml:"percentage"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

func (r usageReport) Fields() []ux.Field {
	return []ux.Field{
		{Label: "Used today", Value: fmt.Sprintf("%d/%d", r.UsedToday, r.DailyLimit)},
		{Label: "Percentage", Value: strconv.FormatFloat(r.Percentage, 'f', 1, 64) + "%"},
		{Label: "Updated", Value: r.UpdatedAt.Local().Format(time.RFC3339)},
	}
}

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show today's usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, runUsage)
		},
	}
}

func runUsage(ctx context.Context, s *services) error {
	if !s.store.Snapshot().Authenticated() {
		return errNotSignedIn
	}

	snap := s.tracker.Refresh(ctx)
	if snap.LastErr != nil {
		return snap.LastErr
	}
	if snap.Info == nil {
		return errNotSignedIn
	}

	return s.formatter.Format(usageReport{
		UsedToday:  snap.Info.UsedToday,
		DailyLimit: snap.Info.DailyLimit,
		Percentage: snap.Info.Percentage(),
		UpdatedAt:  snap.UpdatedAt,
	})
}
