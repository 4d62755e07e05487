// Package access decides, before a view renders, whether the current viewer
// may see it or must be redirected.
//
// Decisions come from one declarative table indexed by route category and
// viewer state. The viewer state is derived from the session on every call
// and never cached, so a logout revokes access on the very next evaluation.
package access

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/skillboard/portal/internal/core/domain"
)

// Landing pages and the login page.
const (
	LoginPath       = "/login"
	EmployeeLanding = "/profile"
	AdminLanding    = "/admin/profiles"
	routeSeparator  = '/'
)

// Category groups routes that share an access rule.
type Category int

const (
	Public Category = iota
	GuestOnly
	Root
	Authenticated
	AdminOnly
	EmployeeOnly
)

func (c Category) String() string {
	switch c {
	case Public:
		return "public"
	case GuestOnly:
		return "guest_only"
	case Root:
		return "root"
	case Authenticated:
		return "authenticated"
	case AdminOnly:
		return "admin_only"
	case EmployeeOnly:
		return "employee_only"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// State is the viewer's standing at evaluation time.
type State int

const (
	Anonymous State = iota
	AuthenticatedEmployee
	AuthenticatedAdmin
)

// Viewer is what the guard knows about whoever is navigating.
type Viewer struct {
	Authenticated bool
	Type          domain.UserType
}

// ViewerFromSession derives the viewer from a session snapshot. A session
// flagged invalid counts as anonymous until the user re-authenticates.
func ViewerFromSession(s domain.Session) Viewer {
	if !s.Authenticated() || s.InvalidSession {
		return Viewer{}
	}
	return Viewer{Authenticated: true, Type: s.CurrentUser.Type}
}

// ViewerFromProfile is a convenience for callers holding only a profile.
func ViewerFromProfile(p *domain.Profile) Viewer {
	if p == nil {
		return Viewer{}
	}
	return Viewer{Authenticated: true, Type: p.Type}
}

// State maps the viewer to a guard state. Unrecognised roles get employee
// rights.
func (v Viewer) State() State {
	switch {
	case !v.Authenticated:
		return Anonymous
	case v.Type == domain.UserTypeAdmin:
		return AuthenticatedAdmin
	default:
		return AuthenticatedEmployee
	}
}

// Decision is the guard's verdict for one navigation.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

func allow() Decision             { return Decision{Allow: true} }
func redirect(to string) Decision { return Decision{Redirect: to} }

// landing is where an authenticated viewer is sent from "/" and "/login".
func landing(s State) string {
	if s == AuthenticatedAdmin {
		return AdminLanding
	}
	return EmployeeLanding
}

// rules is the single source of truth for access decisions.
var rules = map[Category]map[State]Decision{
	Public: {
		Anonymous:             allow(),
		AuthenticatedEmployee: allow(),
		AuthenticatedAdmin:    allow(),
	},
	GuestOnly: {
		Anonymous:             allow(),
		AuthenticatedEmployee: redirect(landing(AuthenticatedEmployee)),
		AuthenticatedAdmin:    redirect(landing(AuthenticatedAdmin)),
	},
	Root: {
		Anonymous:             redirect(LoginPath),
		AuthenticatedEmployee: redirect(landing(AuthenticatedEmployee)),
		AuthenticatedAdmin:    redirect(landing(AuthenticatedAdmin)),
	},
	Authenticated: {
		Anonymous:             redirect(LoginPath),
		AuthenticatedEmployee: allow(),
		AuthenticatedAdmin:    allow(),
	},
	AdminOnly: {
		Anonymous:             redirect(LoginPath),
		AuthenticatedEmployee: redirect(EmployeeLanding),
		AuthenticatedAdmin:    allow(),
	},
	EmployeeOnly: {
		Anonymous:             redirect(LoginPath),
		AuthenticatedEmployee: allow(),
		AuthenticatedAdmin:    redirect(AdminLanding),
	},
}

// Decide looks up the table entry for a category and state.
func Decide(c Category, s State) (Decision, error) {
	byState, ok := rules[c]
	if !ok {
		return Decision{}, fmt.Errorf("access: no rule for %s", c)
	}
	d, ok := byState[s]
	if !ok {
		return Decision{}, fmt.Errorf("access: no rule for %s in state %d", c, s)
	}
	return d, nil
}

// Route declares the access category of a path pattern. Patterns use glob
// syntax with '/' as separator: "*" stays inside one segment, "**" spans
// segments.
type Route struct {
	Pattern  string
	Category Category
}

type compiledRoute struct {
	Route
	g glob.Glob
}

// Policy evaluates navigations against an ordered list of route declarations.
type Policy struct {
	routes []compiledRoute
}

// NewPolicy compiles routes. The first matching declaration wins.
func NewPolicy(routes []Route) (*Policy, error) {
	p := &Policy{routes: make([]compiledRoute, 0, len(routes))}
	for _, r := range routes {
		if _, ok := rules[r.Category]; !ok {
			return nil, fmt.Errorf("access: route %q: unknown category %s", r.Pattern, r.Category)
		}
		g, err := glob.Compile(r.Pattern, routeSeparator)
		if err != nil {
			return nil, fmt.Errorf("access: route %q: %w", r.Pattern, err)
		}
		p.routes = append(p.routes, compiledRoute{Route: r, g: g})
	}
	return p, nil
}

// MustPolicy is NewPolicy for static declarations; a bad declaration is a
// programming error.
func MustPolicy(routes []Route) *Policy {
	p, err := NewPolicy(routes)
	if err != nil {
		panic(err)
	}
	return p
}

// Match returns the declaration governing path.
func (p *Policy) Match(path string) (Route, bool) {
	path = normalizePath(path)
	for _, r := range p.routes {
		if r.g.Match(path) {
			return r.Route, true
		}
	}
	return Route{}, false
}

// Evaluate decides whether v may view path. Paths with no declaration
// return domain.ErrUnknownRoute.
func (p *Policy) Evaluate(path string, v Viewer) (Decision, error) {
	r, ok := p.Match(path)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", domain.ErrUnknownRoute, path)
	}
	return Decide(r.Category, v.State())
}

// normalizePath drops any query or fragment and trailing slashes.
func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if path[0] != '/' {
		path = "/" + path
	}
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
