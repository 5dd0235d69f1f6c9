package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/common"
)

// getSimpleText and getPassword point to the interactive input helpers and
// can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Signup prompts for email, name and password and creates the account.
// The new session becomes current.
func (a *App) Signup(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter name (optional)", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.Signup(ctx, email, password, name)
	if err != nil {
		return err
	}
	a.setUser(u)
	fmt.Fprintf(a.out, "Signed up as %s\n", u.Email)
	return nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.setUser(u)
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", u.Email, u.Role)
	return nil
}

// Resume continues the session saved by a previous run.
func (a *App) Resume(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.Resume(ctx)
	if err != nil {
		return err
	}
	a.setUser(u)
	return nil
}

// Refresh rotates the token pair.
func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

// Me prints the current account as the server sees it.
func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.Me(ctx)
	if err != nil {
		return err
	}
	a.setUser(u)
	fmt.Fprintf(a.out, "id:    %s\nemail: %s\nname:  %s\nrole:  %s\n", u.ID, u.Email, u.Name, u.Role)
	return nil
}

// Logout ends the session. The local user is dropped even when the server
// could not be reached.
func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.authService.Logout(ctx)
	a.setUser(nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return err
	}
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, "OK")
	return nil
}

// describeError turns transport sentinels into short user-facing text.
func describeError(err error) string {
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		return "not logged in, use 'login' or 'signup'"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable"
	}
	return err.Error()
}
