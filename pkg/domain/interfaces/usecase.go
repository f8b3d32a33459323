package interfaces

//go:generate moq -out mocks/usecase_mock.go -pkg mocks . PlanExecutor Planner

import (
	"context"

	"github.com/m-mizutani/msipv6/pkg/domain/model"
)

// PlanExecutor downloads every entry of a plan with bounded parallelism
type PlanExecutor interface {
	// Execute returns after every job reached a terminal state. Only
	// structural problems are returned as errors.
	Execute(ctx context.Context, plan *model.Plan, opts model.ExecuteOptions) (*model.Summary, error)
}

// Planner generates a plan file from a remote repository listing
type Planner interface {
	// Generate writes the plan and returns the path it was written to
	Generate(ctx context.Context, req model.PlanRequest) (string, error)
}
