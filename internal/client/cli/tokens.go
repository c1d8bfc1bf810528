package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/client/client"
)

// Info prints the current access token's metadata.
func (a *App) Info(ctx context.Context) error {
	info, err := a.sessions.Info(ctx)
	if err != nil {
		return a.report("info", err)
	}
	fmt.Printf("Token ID:   %s\n", info.TokenID)
	fmt.Printf("Issued at:  %s\n", info.IssuedAt.Format(time.RFC3339))
	fmt.Printf("Expires at: %s (%ds left)\n", info.ExpiryDate.Format(time.RFC3339), info.SecondsRemaining)
	return nil
}

// Refresh rotates the stored token pair.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.sessions.Refresh(ctx); err != nil {
		return a.report("refresh", err)
	}
	fmt.Println("Token refreshed")
	return nil
}

// Validate asks the server whether the stored access token is still good.
func (a *App) Validate(ctx context.Context) error {
	v, err := a.sessions.Validate(ctx)
	if err != nil {
		return a.report("validate", err)
	}
	if v.Valid && v.SecondsRemaining != nil {
		fmt.Printf("%s (%ds left)\n", v.Message, *v.SecondsRemaining)
		return nil
	}
	fmt.Println(v.Message)
	return nil
}

// Revoke blacklists the current access token.
func (a *App) Revoke(ctx context.Context) error {
	if err := a.sessions.Revoke(ctx); err != nil {
		return a.report("revoke", err)
	}
	fmt.Println("Access token revoked")
	return nil
}

func (a *App) report(op string, err error) error {
	switch {
	case errors.Is(err, client.ErrNoSession):
		fmt.Println("Not logged in")
		a.userName = ""
	case errors.Is(err, client.ErrSecurityRisk):
		fmt.Println("Security risk detected. Please log in again.")
		a.userName = ""
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Println("Session expired. Please log in again.")
		a.userName = ""
	case errors.Is(err, client.ErrUnavailable):
		a.setMode(ModeOffline)
		log.Printf("%s: server unavailable", op)
	default:
		log.Printf("%s: %s", op, err.Error())
	}
	return err
}
