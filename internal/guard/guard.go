// Package guard decides how a gated route renders for the current auth
// state: show the loading view, redirect, or render the page inside the
// navigation chrome. The decision is a pure function of its input and is
// re-evaluated on every request.
package guard

import (
	"net/url"
	"strings"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

// AdminPathPrefix gates the admin area.
const AdminPathPrefix = "/admin"

// Decision is the route guard outcome.
type Decision int

const (
	// ShowLoading renders the loading placeholder; no redirect is made
	// while the auth state is still indeterminate.
	ShowLoading Decision = iota
	// RedirectLogin sends the visitor to the login page, carrying the
	// attempted location so the login flow can return them afterward.
	RedirectLogin
	// RedirectDashboard sends a non-admin away from the admin area.
	RedirectDashboard
	// Render serves the navigation chrome plus the page content.
	Render
)

// Input is everything the guard looks at.
type Input struct {
	Loading bool
	User    *models.User
	Profile *models.Profile
	Path    string
}

// Result carries the decision and, for redirects, the target location.
type Result struct {
	Decision Decision
	Location string
}

// Evaluate applies the gate:
//  1. loading → ShowLoading
//  2. no user → RedirectLogin (attempted path preserved)
//  3. admin path without the admin role → RedirectDashboard
//  4. otherwise → Render
func Evaluate(in Input) Result {
	if in.Loading {
		return Result{Decision: ShowLoading}
	}
	if in.User == nil {
		return Result{
			Decision: RedirectLogin,
			Location: "/login?redirect=" + url.QueryEscape(in.Path),
		}
	}
	if isAdminPath(in.Path) && !in.Profile.IsAdmin() {
		return Result{Decision: RedirectDashboard, Location: "/dashboard"}
	}
	return Result{Decision: Render}
}

func isAdminPath(path string) bool {
	return path == AdminPathPrefix || strings.HasPrefix(path, AdminPathPrefix+"/")
}
