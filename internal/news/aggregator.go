package news

import (
	"context"
	"sync"

	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
)

// Aggregator fans out to every headline source and merges the results in
// source order. A failing source is reported and contributes nothing.
type Aggregator struct {
	sources []interfaces.HeadlineSource
	onError func(source string, err error)
}

func NewAggregator(onError func(source string, err error), sources ...interfaces.HeadlineSource) *Aggregator {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Aggregator{sources: sources, onError: onError}
}

// Collect returns the deduplicated headlines of all sources.
func (a *Aggregator) Collect(ctx context.Context) []string {
	results := make([][]string, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src interfaces.HeadlineSource) {
			defer wg.Done()
			headlines, err := src.Headlines(ctx)
			if err != nil {
				a.onError("news."+src.Name(), err)
				return
			}
			logger.Debug(ctx, "Headlines fetched", "source", src.Name(), "count", len(headlines))
			results[i] = headlines
		}(i, src)
	}
	wg.Wait()

	var all []string
	for _, r := range results {
		all = append(all, r...)
	}
	return dedupe(all)
}
