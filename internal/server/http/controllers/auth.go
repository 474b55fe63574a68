package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	cfgpkg "github.com/nordfund/jobq/internal/config"
)

// Capability names an operation class gated by authorization.
type Capability string

const (
	// CapTriggerRuns allows triggering a worker pass over due jobs.
	CapTriggerRuns Capability = "trigger_runs"
	// CapRequeue allows requeueing dead-lettered or stuck jobs.
	CapRequeue Capability = "requeue"
)

// Principal identifies the caller of an authenticated endpoint.
//
// System is set when the caller presented the configured run token instead of
// a user identity; such callers may trigger runs but hold no other rights.
type Principal struct {
	Name   string
	Role   string
	System bool
}

// Authorizer decides whether a principal holds a capability.
type Authorizer interface {
	Allow(p Principal, cap Capability) bool
}

// RoleAuthorizer grants capabilities by role membership from config.
type RoleAuthorizer struct {
	trigger  map[string]struct{}
	operator map[string]struct{}
}

// NewRoleAuthorizer builds an authorizer from the configured role lists.
func NewRoleAuthorizer(cfg cfgpkg.Config) *RoleAuthorizer {
	a := &RoleAuthorizer{
		trigger:  make(map[string]struct{}, len(cfg.TriggerRoles)),
		operator: make(map[string]struct{}, len(cfg.OperatorRoles)),
	}
	for _, r := range cfg.TriggerRoles {
		a.trigger[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	for _, r := range cfg.OperatorRoles {
		a.operator[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return a
}

func (a *RoleAuthorizer) Allow(p Principal, cap Capability) bool {
	if p.System {
		return cap == CapTriggerRuns
	}
	role := strings.ToLower(p.Role)
	switch cap {
	case CapTriggerRuns:
		if _, ok := a.trigger[role]; ok {
			return true
		}
		_, ok := a.operator[role]
		return ok
	case CapRequeue:
		_, ok := a.operator[role]
		return ok
	default:
		return false
	}
}

// Request headers carrying caller identity. The portal fronting this service
// terminates user auth and forwards the resolved identity.
const (
	headerRunToken  = "X-Jobq-Run-Token"
	headerPrincipal = "X-Jobq-Principal"
	headerRole      = "X-Jobq-Role"
)

// principalFromRequest resolves the caller identity from request headers.
//
// A matching run token yields a system principal. Otherwise the forwarded
// principal/role headers are used; absent both, ok is false.
func principalFromRequest(r *http.Request, runToken string) (Principal, bool) {
	if tok := r.Header.Get(headerRunToken); tok != "" && runToken != "" {
		if subtle.ConstantTimeCompare([]byte(tok), []byte(runToken)) == 1 {
			return Principal{Name: "timer", System: true}, true
		}
		return Principal{}, false
	}
	name := r.Header.Get(headerPrincipal)
	if name == "" {
		return Principal{}, false
	}
	return Principal{Name: name, Role: r.Header.Get(headerRole)}, true
}
