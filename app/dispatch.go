// Package app provides application services that orchestrate domain
// logic over the ports.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/artpar/fusion/adapters/metrics"
	"github.com/artpar/fusion/domain/dispatch"
	"github.com/artpar/fusion/domain/source"
	"github.com/artpar/fusion/ports"
)

// DispatchDeps contains dependencies for DispatchService.
type DispatchDeps struct {
	Destinations ports.DestinationStore
	Authorizer   *Authorizer
	Fetcher      ports.Fetcher
	Filter       ports.Filter
	IDGen        ports.IDGenerator
	Metrics      *metrics.Collector // optional
	Logger       zerolog.Logger
}

// DispatchService handles one inbound gateway request end to end:
// resolve the destination, authorize, fan out, aggregate, filter.
type DispatchService struct {
	destinations ports.DestinationStore
	authorizer   *Authorizer
	fetcher      ports.Fetcher
	filter       ports.Filter
	idGen        ports.IDGenerator
	metrics      *metrics.Collector
	logger       zerolog.Logger
}

// NewDispatchService creates the dispatch service.
func NewDispatchService(deps DispatchDeps) *DispatchService {
	return &DispatchService{
		destinations: deps.Destinations,
		authorizer:   deps.Authorizer,
		fetcher:      deps.Fetcher,
		filter:       deps.Filter,
		idGen:        deps.IDGen,
		metrics:      deps.Metrics,
		logger:       deps.Logger.With().Str("component", "dispatch").Logger(),
	}
}

// Handle processes an inbound request and returns the result to write.
func (s *DispatchService) Handle(ctx context.Context, req dispatch.Request) dispatch.Result {
	start := time.Now()
	if req.TraceID == "" && s.idGen != nil {
		req.TraceID = s.idGen.New()
	}
	path := normalizePath(req.Path)

	res := s.handle(ctx, path, req)

	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(path, strconv.Itoa(res.Status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}

	evt := s.logger.Debug()
	if res.Err != nil {
		evt = s.logger.Warn().Str("error", res.Err.Error())
	}
	evt.Str("path", path).
		Int("status", res.Status).
		Dur("duration", time.Since(start)).
		Str("trace_id", req.TraceID).
		Msg("dispatch")

	return res
}

func (s *DispatchService) handle(ctx context.Context, path string, req dispatch.Request) dispatch.Result {
	dest, err := s.destinations.ByPath(ctx, path)
	if errors.Is(err, ports.ErrNotFound) {
		return dispatch.Fail(dispatch.ErrNotFound)
	}
	if err != nil {
		return dispatch.Fail(dispatch.Internal(fmt.Sprintf("resolve destination: %v", err)))
	}

	if dest.RequiresAuth() {
		if err := s.authorizer.Authorize(ctx, req.Authorization, dest); err != nil {
			return dispatch.Fail(dispatch.ErrUnauthorized)
		}
	}

	sources, err := s.destinations.Sources(ctx, dest.ID)
	if err != nil {
		return dispatch.Fail(dispatch.Internal(fmt.Sprintf("load sources: %v", err)))
	}

	body, derr := s.fanOut(ctx, sources)
	if derr != nil {
		return dispatch.Fail(derr)
	}

	if dest.HasFilter() {
		out, err := s.filter.Apply(ctx, dest.Filter, body)
		if err != nil {
			return dispatch.Fail(dispatch.Internal(fmt.Sprintf("apply filter: %v", err)))
		}
		// Filter output is trusted verbatim after a trailing trim.
		body = bytes.TrimRight(out, " \t\r\n")
	}

	return dispatch.OK(body, dest.Headers)
}

// fanOut calls every source concurrently and assembles the JSON array
// in source order, independent of completion order. A failing source
// is replaced by its fallback when one is configured; otherwise its
// error cancels the siblings and fails the request.
func (s *DispatchService) fanOut(ctx context.Context, sources []source.Source) ([]byte, *dispatch.Error) {
	results := make([][]byte, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			payload, err := s.fetchOne(gctx, src)
			if err != nil {
				return err
			}
			results[i] = payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var derr *dispatch.Error
		if errors.As(err, &derr) {
			return nil, derr
		}
		return nil, dispatch.Internal(err.Error())
	}

	var out bytes.Buffer
	out.WriteByte('[')
	for i, r := range results {
		if i > 0 {
			out.WriteByte(',')
		}
		out.Write(r)
	}
	out.WriteByte(']')
	return out.Bytes(), nil
}

func (s *DispatchService) fetchOne(ctx context.Context, src source.Source) ([]byte, error) {
	start := time.Now()
	payload, err := s.fetcher.Fetch(ctx, src)
	if s.metrics != nil {
		s.metrics.UpstreamDuration.WithLabelValues(src.Code).Observe(time.Since(start).Seconds())
	}
	if err == nil {
		return payload, nil
	}

	timedOut := isTimeout(err)
	if s.metrics != nil {
		kind := "error"
		if timedOut {
			kind = "timeout"
		}
		s.metrics.UpstreamErrors.WithLabelValues(src.Code, kind).Inc()
	}

	if src.HasFallback() {
		if s.metrics != nil {
			s.metrics.FallbacksTotal.WithLabelValues(src.Code).Inc()
		}
		s.logger.Warn().Str("source", src.Code).Err(err).Msg("substituting fallback")
		return src.Fallback, nil
	}

	if timedOut {
		return nil, dispatch.BadRequest(fmt.Sprintf("source %s timed out", src.Code))
	}
	return nil, dispatch.Internal(fmt.Sprintf("source %s: %v", src.Code, err))
}

// isTimeout mirrors the upstream adapter's classification without
// depending on it: deadline misses map to BadRequest.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
