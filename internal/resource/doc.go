// Package resource bounds background work: a weighted semaphore limits
// concurrent jobs and a token bucket limits the rows they move per second.
//
//	rc := resource.NewController(resource.Config{MaxWorkers: 4, RowsPerSec: 10000})
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
//	for _, row := range rows {
//	    if err := rc.WaitRows(ctx); err != nil {
//	        return err
//	    }
//	    ...
//	}
//
// All methods are safe for concurrent use, and a nil Controller imposes no
// limits.
package resource
