// Package coordinator fans out connector fetches, waits for every call to
// settle, and reports one outcome per connector. A provider failing, hanging
// past its timeout, or panicking degrades only its own outcome; siblings
// always run to completion.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/daterange"
)

// DefaultTimeout bounds a single connector call. A hung provider becomes a
// Failure outcome instead of hanging the whole request.
const DefaultTimeout = 30 * time.Second

// Outcome is the settled result of one connector call: exactly one of
// Payload or Err is set.
type Outcome struct {
	Provider string
	Payload  *connector.Payload
	Err      error
	Elapsed  time.Duration
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Result holds the outcomes of one fan-out, keyed by provider name.
type Result struct {
	Outcomes map[string]Outcome
}

// Payload returns the payload for a provider. A failed or absent provider
// yields nil, which downstream stages treat as zero activity plus a
// degraded flag — the two are kept distinguishable via Degraded.
func (r *Result) Payload(provider string) *connector.Payload {
	if o, ok := r.Outcomes[provider]; ok && o.OK() {
		return o.Payload
	}
	return nil
}

// Degraded lists the providers whose calls failed, in no particular order.
func (r *Result) Degraded() []string {
	var names []string
	for name, o := range r.Outcomes {
		if !o.OK() {
			names = append(names, name)
		}
	}
	return names
}

// Partial reports whether any provider failed.
func (r *Result) Partial() bool { return len(r.Degraded()) > 0 }

// Coordinator runs batches of connector fetches concurrently.
type Coordinator struct {
	timeout time.Duration
}

// New returns a Coordinator with the given per-call timeout; zero means
// DefaultTimeout.
func New(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{timeout: timeout}
}

// FetchAll launches one fetch per connector and blocks until all have
// settled. It never returns an error itself: every failure, timeout, or
// panic is captured in that connector's Outcome. Cancelling ctx cancels the
// in-flight calls, which then settle as failures.
func (c *Coordinator) FetchAll(ctx context.Context, conns []connector.Connector, dr daterange.Range) *Result {
	result := &Result{Outcomes: make(map[string]Outcome, len(conns))}
	outcomes := make([]Outcome, len(conns))

	// No errgroup error propagation: a connector failure must not cancel
	// siblings, so every goroutine returns nil and records its own outcome.
	g := new(errgroup.Group)
	for i, conn := range conns {
		g.Go(func() error {
			outcomes[i] = c.fetchOne(ctx, conn, dr)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		result.Outcomes[o.Provider] = o
	}
	return result
}

func (c *Coordinator) fetchOne(ctx context.Context, conn connector.Connector, dr daterange.Range) (out Outcome) {
	out.Provider = conn.Name()
	start := time.Now()
	defer func() {
		out.Elapsed = time.Since(start)
		if rec := recover(); rec != nil {
			out.Payload = nil
			out.Err = connector.NewError(conn.Name(), eris.Errorf("panic: %v", rec))
			zap.L().Error("coordinator: connector panicked",
				zap.String("provider", conn.Name()),
				zap.Any("panic", rec),
			)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := conn.Fetch(callCtx, dr)
	if err != nil {
		// Adapters already return *connector.Error; anything else gets
		// wrapped so callers see a uniform failure type.
		var cerr *connector.Error
		if !errors.As(err, &cerr) {
			err = connector.NewError(conn.Name(), err)
		}
		zap.L().Warn("coordinator: connector degraded",
			zap.String("provider", conn.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		out.Err = err
		return out
	}

	zap.L().Debug("coordinator: connector settled",
		zap.String("provider", conn.Name()),
		zap.Duration("elapsed", time.Since(start)),
	)
	out.Payload = payload
	return out
}
