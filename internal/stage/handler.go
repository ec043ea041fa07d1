package stage

import (
	"context"

	"sunny/internal/sessions"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *sessions.Session) error
	Execute(context.Context, *sessions.Session) error
	HealthCheck(context.Context) Health
}
