package meeting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
)

// Joiner drives the joining stage. Unlike the later stages it returns a live
// Handle, so the workflow runner calls it directly rather than through the
// uniform stage contract.
type Joiner struct {
	cfg    *config.Config
	logger *slog.Logger
	driver Driver
}

// NewJoiner constructs the joiner with the default exec driver.
func NewJoiner(cfg *config.Config, logger *slog.Logger) *Joiner {
	return NewJoinerWithDriver(cfg, logger, NewExecDriver(cfg.Meeting.BotCommand))
}

// NewJoinerWithDriver allows injecting the driver (used in tests).
func NewJoinerWithDriver(cfg *config.Config, logger *slog.Logger, driver Driver) *Joiner {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "joiner"))
	}
	return &Joiner{cfg: cfg, logger: stageLogger, driver: driver}
}

// JoinTimeout returns the configured admission deadline.
func (j *Joiner) JoinTimeout() time.Duration {
	return time.Duration(j.cfg.Meeting.JoinTimeoutSeconds) * time.Second
}

// Join parses the session URL and admits the bot to the call. The returned
// Handle stays valid until Leave is called or the meeting ends.
func (j *Joiner) Join(ctx context.Context, session *sessions.Session) (Handle, error) {
	logger := logging.WithContext(ctx, j.logger)

	ref, err := ParseURL(session.MeetingURL)
	if err != nil {
		return nil, err
	}
	if ref.Platform != session.Platform {
		return nil, services.Wrap(services.KindInvalidURL, "join", "meeting URL does not match session platform", nil)
	}

	joinCtx, cancel := context.WithTimeout(ctx, j.JoinTimeout())
	defer cancel()

	logger.Info("joining meeting",
		logging.String("platform", string(ref.Platform)),
		logging.String("meeting_id", ref.MeetingID))

	handle, err := j.driver.Join(joinCtx, ref, j.cfg.Meeting.BotName)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return nil, services.Wrap(services.KindJoinTimeout, "join", "not admitted before the join deadline", err)
		case errors.Is(err, ErrAuthRequired):
			return nil, services.Wrap(services.KindAuthRequired, "join", "meeting requires a signed-in participant", err)
		case errors.Is(err, ErrMeetingEnded):
			return nil, services.Wrap(services.KindMeetingEnded, "join", "meeting already over", err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, services.Wrap(services.KindJoinTransient, "join", "bot failed to join", err)
		}
	}

	logger.Info("joined meeting", logging.String("meeting_id", ref.MeetingID))
	return handle, nil
}

// Leave detaches the bot from the call.
func (j *Joiner) Leave(ctx context.Context, handle Handle) error {
	if handle == nil {
		return nil
	}
	return j.driver.Leave(ctx, handle)
}

// HealthCheck verifies the bot binary is launchable.
func (j *Joiner) HealthCheck(ctx context.Context) stage.Health {
	const name = "joiner"
	if err := j.driver.Available(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
