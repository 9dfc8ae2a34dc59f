// Package asyncx holds the small set of concurrency helpers the service
// layers share.
//
// [WithTimeout] bounds a blocking call such as a model invocation. The
// callee receives a derived context and the caller gets
// context.DeadlineExceeded when the deadline passes first:
//
//	reply, err := asyncx.WithTimeout(ctx, 2*time.Minute, func(ctx context.Context) (llm.Response, error) {
//	    return client.Chat(ctx, msgs)
//	})
//
// [Go] starts fire-and-forget work (snapshot mirroring, transcript archiving)
// with panic recovery so a failing side task never takes the process down.
//
// [RetryWithBackoff] retries a side effect with doubling delays and stops early
// when the context is cancelled.
package asyncx
