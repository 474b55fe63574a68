package controllers

import (
	"github.com/go-chi/chi/v5"

	"github.com/nordfund/jobq/internal/runtime"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes.
type ControllerRegistry struct {
	general *GeneralController
	jobs    *JobsController
	runs    *RunsController
}

// NewControllerRegistry creates a new controller registry.
//
// It initializes all controllers with the provided runtime and a role
// authorizer built from its configuration.
func NewControllerRegistry(rt *runtime.Runtime) *ControllerRegistry {
	auth := NewRoleAuthorizer(rt.Config())
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		jobs:    NewJobsController(rt, auth),
		runs:    NewRunsController(rt, auth),
	}
}

// RegisterAllRoutes registers all controller routes with the given router.
func (r *ControllerRegistry) RegisterAllRoutes(router chi.Router) {
	r.general.RegisterRoutes(router)
	r.jobs.RegisterRoutes(router)
	r.runs.RegisterRoutes(router)
}
