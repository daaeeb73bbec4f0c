package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// getSimpleText, getYesNo and getPassword are indirections used to facilitate
// testing. They point to interactive input helpers and can be swapped in tests.
var (
	getSimpleText = GetSimpleText
	getYesNo      = GetYesNo
	getPassword   = GetPassword
)

const maxBodyPrint = 64 << 10

// Login prompts for credentials and the remember-me choice and establishes
// the session. The password is wiped before returning.
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

	rememberMe, err := getYesNo(a.reader, "Keep me signed in?", a.out)
	if err != nil {
		return err
	}

	if err := a.session.Login(ctx, email, password, rememberMe); err != nil {
		return fmt.Errorf("login unsuccessful: %w", err)
	}
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Logout ends the session; the logout hook prints the outcome.
func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx, common.LogoutUser)
}

func (a *App) Status(ctx context.Context) error {
	st := a.session.Status(ctx)
	if !st.Authenticated {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}

	fmt.Fprintf(a.out, "User:    %s\n", st.Email)
	if st.Role != "" {
		fmt.Fprintf(a.out, "Role:    %s\n", st.Role)
	}
	fmt.Fprintf(a.out, "Session: %s\n", st.Kind)
	if st.ExpiresAt.IsZero() {
		fmt.Fprintln(a.out, "Token:   expiry unknown")
	} else {
		fmt.Fprintf(a.out, "Token:   expires %s\n", st.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Fprintf(a.out, "Idle:    %s\n", st.Idle)
	return nil
}

// Token makes sure a valid access token is available, refreshing it when it
// is about to expire. The token itself is not printed.
func (a *App) Token(ctx context.Context) error {
	if _, err := a.session.ValidAccessToken(ctx); err != nil {
		return err
	}
	st := a.session.Status(ctx)
	if st.ExpiresAt.IsZero() {
		fmt.Fprintln(a.out, "Access token ready")
		return nil
	}
	fmt.Fprintf(a.out, "Access token ready, valid for %s\n", time.Until(st.ExpiresAt).Round(time.Second))
	return nil
}

// Get issues an authenticated GET for path relative to the API base and
// prints the response.
func (a *App) Get(ctx context.Context, path string) error {
	target := a.apiBase + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		if errors.Is(err, common.ErrAuthorizationFailed) {
			return errors.New("not authorized, please log in again")
		}
		return err
	}
	defer resp.Body.Close()

	fmt.Fprintln(a.out, resp.Status)
	if _, err := io.Copy(a.out, io.LimitReader(resp.Body, maxBodyPrint)); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	return nil
}
