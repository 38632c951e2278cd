package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/reqctx"
)

type cmdEnv struct {
	svc    *services
	out    io.Writer
	errOut io.Writer
	sigCh  <-chan os.Signal
}

type runFunc func(ctx context.Context, env *cmdEnv) error

type command struct {
	summary string
	parse   func(args []string, stderr io.Writer) (runFunc, error)
}

var commandTable = map[string]command{
	"migrate":        {"apply schema migrations to the Postgres stores", parseMigrate},
	"seed":           {"create the dev accounts", parseSeed},
	"register":       {"register a LOCAL account", parseRegister},
	"login":          {"log in with email and password", parseLogin},
	"oauth-login":    {"log in with a provider identity, creating the account on first login", parseOAuthLogin},
	"find":           {"look an active account up by -id or -email", parseFind},
	"verify":         {"verify an access token", parseVerify},
	"set-status":     {"enable or disable an account (ADMIN)", parseSetStatus},
	"update-profile": {"change display name and/or avatar", parseUpdateProfile},
	"serve-metrics":  {"serve Prometheus metrics until interrupted", parseServeMetrics},
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commandTable))
	for n := range commandTable {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: accountctl <command> [flags]")
	fmt.Fprintln(w, "commands:")
	for _, n := range names {
		fmt.Fprintf(w, "  %-15s %s\n", n, commandTable[n].summary)
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// correlated tags every store call of a command with one correlation id.
func correlated(fn runFunc) runFunc {
	return func(ctx context.Context, env *cmdEnv) error {
		return fn(reqctx.Ensure(ctx), env)
	}
}

/*
========================
 commands
========================
*/

func parseMigrate(args []string, stderr io.Writer) (runFunc, error) {
	if err := newFlagSet("migrate", stderr).Parse(args); err != nil {
		return nil, err
	}
	return func(ctx context.Context, env *cmdEnv) error {
		if err := env.svc.migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(env.out, "migrations applied")
		return nil
	}, nil
}

func parseSeed(args []string, stderr io.Writer) (runFunc, error) {
	if err := newFlagSet("seed", stderr).Parse(args); err != nil {
		return nil, err
	}
	return correlated(func(ctx context.Context, env *cmdEnv) error {
		n, err := env.svc.seed(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "seeded %d accounts\n", n)
		return nil
	}), nil
}

func parseRegister(args []string, stderr io.Writer) (runFunc, error) {
	fs := newFlagSet("register", stderr)
	var in auth.RegisterInput
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "password (8-72 chars, upper, lower and digit)")
	fs.StringVar(&in.FullName, "name", "", "display name")
	fs.StringVar(&in.Role, "role", "", "STUDENT (default) or MENTOR")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return correlated(func(ctx context.Context, env *cmdEnv) error {
		res, err := env.svc.auth.Register(ctx, in)
		if err != nil {
			return err
		}
		return writeJSON(env.out, loginView{User: toUserView(res.User), Tokens: toTokenView(res.Tokens)})
	}), nil
}

func parseLogin(args []string, stderr io.Writer) (runFunc, error) {
	fs := newFlagSet("login", stderr)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return correlated(func(ctx context.Context, env *cmdEnv) error {
		res, err := env.svc.auth.Login(ctx, *email, *password)
		if err != nil {
			return err
		}
		return writeJSON(env.out, loginView{User: toUserView(res.User), Tokens: toTokenView(res.Tokens)})
	}), nil
}

func parseOAuthLogin(args []string, stderr io.Writer) (runFunc, error) {
	fs := newFlagSet("oauth-login", stderr)
	var id auth.OAuthIdentity
	fs.StringVar(&id.Provider, "provider", "", "GOOGLE or GITHUB")
	fs.StringVar(&id.ProviderUserID, "provider-id", "", "user id at the provider")
	fs.StringVar(&id.Email, "email", "", "email returned by the provider")
	fs.StringVar(&id.FullName, "name", "", "display name")
	fs.StringVar(&id.AvatarURL, "avatar", "", "avatar URL")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return correlated(func(ctx context.Context, env *cmdEnv) error {
		res, err := env.svc.auth.OAuthLogin(ctx, id)
		if err != nil {
			return err
		}
		return writeJSON(env.out, loginView{
			User:      toUserView(res.User),
			Tokens:    toTokenView(res.Tokens),
			IsNewUser: &res.IsNewUser,
		})
	}), nil
}

func parseFind(args []string, stderr io.Writer) (runFunc, error) {
	fs := newFlagSet("find", stderr)
	id := fs.String("id", "", "account id")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if (*id == "") == (*email == "") {
		fmt.Fprintln(stderr, "find: exactly one of -id or -email is required")
		return nil, errors.New("bad flags")
	}
	return correlated(func(ctx context.Context, env *cmdEnv) error {
		var (
			u   domain.User
			err error
		)
		if *id != "" {
			u, err = env.svc.accounts.FindByID(ctx, *id)
		} else {
			u, err = env.svc.accounts.FindByEmail(ctx, *email)
		}
		if err != nil {
			return err
		}
		return writeJSON(env.out, toUserView(u))
	}), nil
}

func parseVerify(args []string, stderr io.Writer) (runFunc, error) {
	fs := newFlagSet("verify", stderr)
	token := fs.String("token", "", "access token")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return correlated(func(ctx context.Context, env *cmdEnv) error {
		u, err := env.svc.auth.VerifyToken(ctx, *token)
		if err != nil {
			return err
		}
		return writeJSON(env.out, toUserView(u))
	}), nil
}

func parseSetStatus(args []string, stderr io.Writer) (runFunc, error) {
	fs := newFlagSet("set-status", stderr)
	actorID := fs.String("actor-id", "", "id of the acting account")
	actorRole := fs.String("actor-role", "", "role of the acting account")
	target := fs.String("id", "", "account to change")
	active := fs.Bool("active", true, "enable (true) or disable (false)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return correlated(func(ctx context.Context, env *cmdEnv) error {
		u, err := env.svc.auth.SetStatus(ctx, *actorID, *actorRole, *target, *active)
		if err != nil {
			return err
		}
		return writeJSON(env.out, toUserView(u))
	}), nil
}

func parseUpdateProfile(args []string, stderr io.Writer) (runFunc, error) {
	fs := newFlagSet("update-profile", stderr)
	id := fs.String("id", "", "account id")
	name := fs.String("name", "", "new display name")
	avatar := fs.String("avatar", "", "new avatar URL (empty clears it)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// only flags given on the command line are changed
	var fullName, avatarURL *string
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			fullName = name
		case "avatar":
			avatarURL = avatar
		}
	})

	return correlated(func(ctx context.Context, env *cmdEnv) error {
		u, err := env.svc.auth.UpdateProfile(ctx, *id, fullName, avatarURL)
		if err != nil {
			return err
		}
		return writeJSON(env.out, toUserView(u))
	}), nil
}

func parseServeMetrics(args []string, stderr io.Writer) (runFunc, error) {
	fs := newFlagSet("serve-metrics", stderr)
	addr := fs.String("addr", "", "listen address (default METRICS_ADDR)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return func(ctx context.Context, env *cmdEnv) error {
		listen := *addr
		if listen == "" {
			listen = env.svc.metricsAddr
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", env.svc.metrics)
		srv := &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		return serveMetrics(realServer{srv}, env.sigCh, env.errOut)
	}, nil
}

/*
========================
 output
========================
*/

type userView struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	AuthProvider string    `json:"auth_provider"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type tokenView struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type loginView struct {
	User      userView  `json:"user"`
	Tokens    tokenView `json:"tokens"`
	IsNewUser *bool     `json:"is_new_user,omitempty"`
}

func toUserView(u domain.User) userView {
	return userView{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         string(u.Role),
		AuthProvider: string(u.AuthProvider),
		AvatarURL:    u.AvatarURL,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toTokenView(t auth.AuthTokens) tokenView {
	return tokenView{AccessToken: t.AccessToken, TokenType: t.TokenType, ExpiresIn: t.ExpiresIn}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError shows the stable code of domain errors so scripts can branch on it.
func printError(w io.Writer, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "error: %s: %s", de.Code, de.Message)
	keys := make([]string, 0, len(de.Meta))
	for k := range de.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, de.Meta[k])
	}
	fmt.Fprintln(w, b.String())
}
