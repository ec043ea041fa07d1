package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// runAnalyzers executes every analyzer concurrently, each under its own
// timeout, and returns results in registration order. A panic or error in
// one analyzer never disturbs the others.
func runAnalyzers(ctx context.Context, analyzers []Analyzer, input Input, perAnalyzerTimeout time.Duration) []Result {
	results := make([]Result, len(analyzers))

	var wg sync.WaitGroup
	for i, analyzer := range analyzers {
		wg.Add(1)
		go func(i int, analyzer Analyzer) {
			defer wg.Done()
			results[i] = runOne(ctx, analyzer, input, perAnalyzerTimeout)
		}(i, analyzer)
	}
	wg.Wait()

	return results
}

func runOne(ctx context.Context, analyzer Analyzer, input Input, timeout time.Duration) (result Result) {
	result = Result{Analyzer: analyzer.Name()}
	defer func() {
		if r := recover(); r != nil {
			result.Status = ResultFailed
			result.Detail = fmt.Sprintf("panic: %v", r)
			result.Data = nil
		}
	}()

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := analyzer.Analyze(runCtx, input)
	switch {
	case errors.Is(err, ErrSkip):
		result.Status = ResultSkipped
		result.Detail = skipDetail(err)
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		// truncated by the fan-out deadline, not the analyzer's own budget
		result.Status = ResultSkipped
		result.Detail = "timeout"
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = ResultFailed
		result.Detail = "timed out"
	case err != nil:
		result.Status = ResultFailed
		result.Detail = err.Error()
	default:
		encoded, marshalErr := json.Marshal(data)
		if marshalErr != nil {
			result.Status = ResultFailed
			result.Detail = fmt.Sprintf("encode result: %v", marshalErr)
			return result
		}
		result.Status = ResultOK
		result.Data = encoded
	}
	return result
}

func skipDetail(err error) string {
	if err == nil || err == ErrSkip {
		return ""
	}
	return err.Error()
}
