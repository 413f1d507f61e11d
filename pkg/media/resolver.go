package media

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Strategy is one way of acquiring media bytes.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) (Payload, error)
}

// Resolver tries its strategies in order; the first non-empty payload wins.
type Resolver struct {
	strategies []Strategy
	logger     *zap.Logger
}

func NewResolver(logger *zap.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, logger: logger}
}

// DefaultStrategies is the standard chain: direct fetch, sampling a loaded
// element, a fresh CORS image load, then a fetch delegated to the page.
// Page-backed steps are omitted when page is nil.
func DefaultStrategies(fetcher *DirectFetch, page Page) []Strategy {
	s := []Strategy{fetcher}
	if page != nil {
		s = append(s, &ElementSample{Page: page}, &CORSImageLoad{Page: page}, &DelegatedFetch{Page: page})
	}
	return s
}

func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the media at req.URL with a corrected MIME type. On
// failure the error is an *Error of kind AllStrategiesExhausted wrapping
// every strategy's failure.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Payload, error) {
	var errs []error
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		p, err := s.Attempt(ctx, req)
		if err == nil && len(p.Data) == 0 {
			err = errors.New("empty payload")
		}
		if err != nil {
			r.logger.Debug("Media strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("url", req.URL),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		p.Strategy = s.Name()
		p = CorrectMIME(req.URL, p)
		r.logger.Debug("Media resolved",
			zap.String("strategy", s.Name()),
			zap.String("url", req.URL),
			zap.String("mime_type", p.MIMEType),
			zap.Int("bytes", len(p.Data)),
		)
		return p, nil
	}
	return Payload{}, &Error{Kind: KindAllStrategiesExhausted, URL: req.URL, Err: errors.Join(errs...)}
}
