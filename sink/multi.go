package sink

import (
	"context"
	"errors"
)

// PageSink mirrors twitter.PageSink so sinks compose without importing the
// root package.
type PageSink interface {
	SavePage(ctx context.Context, query string, page []byte) error
}

// Multi saves every page to each sink in order. All sinks are attempted;
// their errors are joined.
type Multi []PageSink

// SavePage implements twitter.PageSink.
func (m Multi) SavePage(ctx context.Context, query string, page []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.SavePage(ctx, query, page); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
