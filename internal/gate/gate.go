// Package gate decides whether a request may render a protected section.
//
// A Gate resolves the caller's profile through a ProfileResolver and applies
// one authoritative policy to produce a Decision: Loading, AccessDenied,
// Allow (with or without a subject) or Redirect. The package knows nothing
// about HTTP or storage; subjects only need to expose a role and a status.
//
// The gate is generic over the subject type so tests can use small fakes:
//   - Gate[*models.Profile] in the server
//   - Gate[fakeSubject] in unit tests
package gate

import (
	"context"
	"errors"
	"time"
)

// Subject is anything the gate can make a role/status decision about.
type Subject interface {
	AccessRole() string
	AccessStatus() string
}

// Outcome is the kind of decision the gate reached.
type Outcome int

const (
	// Loading means resolution did not finish before the context ended.
	Loading Outcome = iota
	AccessDenied
	Allow
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case AccessDenied:
		return "access_denied"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is the result of Evaluate. Subject is only meaningful when Found is
// true; an Allow without a subject is the lenient "anonymous" allow.
type Decision[S Subject] struct {
	Outcome Outcome
	Subject S
	Found   bool
	Target  string
	Reason  string
}

// Allowed reports whether protected content may render.
func (d Decision[S]) Allowed() bool { return d.Outcome == Allow }

// Options configures a Gate.
type Options struct {
	// Strict requires an identity with an approved profile for every gated
	// path. When false, unauthenticated or profile-less callers are allowed
	// outside admin paths.
	Strict bool
	// AdminPaths lists the admin-only path prefixes.
	AdminPaths Rules
	// AdminRole and ApprovedStatus are the values that open admin paths.
	AdminRole      string
	ApprovedStatus string
	// RedirectTo is where Redirect decisions point. Defaults to "/".
	RedirectTo string
	// Timeout bounds a single profile lookup. Zero means no extra bound.
	Timeout time.Duration
	// OnLookupError is told about lookup failures other than timeouts.
	OnLookupError func(userID string, err error)
}

// Gate evaluates access for a path and identity.
type Gate[S Subject] struct {
	resolver ProfileResolver[S]
	opts     Options
}

// New creates a Gate resolving profiles through resolver.
func New[S Subject](resolver ProfileResolver[S], opts Options) *Gate[S] {
	if opts.AdminRole == "" {
		opts.AdminRole = "admin"
	}
	if opts.ApprovedStatus == "" {
		opts.ApprovedStatus = "approved"
	}
	if opts.RedirectTo == "" {
		opts.RedirectTo = "/"
	}
	return &Gate[S]{resolver: resolver, opts: opts}
}

// IsAdminPath reports whether path is admin-only.
func (g *Gate[S]) IsAdminPath(path string) bool {
	return g.opts.AdminPaths.Match(path)
}

// Evaluate decides access to path for userID. An empty userID means no
// session. Each call resolves from scratch; ctx cancellation yields Loading.
func (g *Gate[S]) Evaluate(ctx context.Context, path, userID string) Decision[S] {
	admin := g.IsAdminPath(path)

	if userID == "" {
		if g.opts.Strict || admin {
			return g.redirect("no session")
		}
		return Decision[S]{Outcome: Allow, Reason: "anonymous"}
	}

	lookupCtx := ctx
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	subject, found, err := g.resolver.Resolve(lookupCtx, userID)
	if err != nil {
		if lookupCtx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Decision[S]{Outcome: Loading, Reason: "profile lookup did not finish"}
		}
		if g.opts.OnLookupError != nil {
			g.opts.OnLookupError(userID, err)
		}
		return g.missing(admin, "profile lookup failed")
	}
	if !found {
		return g.missing(admin, "profile not found")
	}

	approved := subject.AccessStatus() == g.opts.ApprovedStatus
	isAdmin := subject.AccessRole() == g.opts.AdminRole

	if g.opts.Strict && !approved {
		return g.redirect("account not approved")
	}
	if admin && !(isAdmin && approved) {
		return Decision[S]{Outcome: AccessDenied, Subject: subject, Found: true, Reason: "admin role required"}
	}
	return Decision[S]{Outcome: Allow, Subject: subject, Found: true}
}

func (g *Gate[S]) missing(admin bool, reason string) Decision[S] {
	switch {
	case g.opts.Strict:
		return g.redirect(reason)
	case admin:
		return Decision[S]{Outcome: AccessDenied, Reason: reason}
	default:
		return Decision[S]{Outcome: Allow, Reason: reason}
	}
}

func (g *Gate[S]) redirect(reason string) Decision[S] {
	return Decision[S]{Outcome: Redirect, Target: g.opts.RedirectTo, Reason: reason}
}
