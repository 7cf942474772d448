// Package batch serves a list of loaded records as both an event source and a
// response source.
//
// Record sources that read a whole result set at once (a file, a query, a
// collection) supply only a Fetch function and embed *Source:
//
//	src := batch.New(fetchRows, batch.Config{
//		Mode:   broadcast.ModeRepeat,
//		Reload: true,
//	})
//
// The first pass fetches. In repeating mode a failed fetch is retried on the
// next pass, and with Reload set every pass fetches afresh so rows added or
// removed between passes are picked up.
package batch
