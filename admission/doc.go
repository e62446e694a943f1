// Package admission bounds how many executions the engine starts.
//
// Every trigger passes through a [Controller] before an execution is
// created. The controller enforces two tiers of limits: engine-wide
// [Limits] that protect the process as a whole, and per-workflow [Config]
// entries for workflows whose downstream resources cannot absorb
// unbounded concurrency.
//
// # Engine-Wide Limits
//
//	admission.Limits{
//	    MaxConcurrent: 50,  // max 50 executions running at once
//	    RateLimit:     10,  // max 10 triggers/s sustained
//	    RateBurst:     20,  // allow bursts up to 20
//	}
//
// # Per-Workflow Configuration
//
// Use [Config] to cap a single workflow independently:
//
//	admission.Config{
//	    Workflow:      "hazmat-response",
//	    MaxConcurrent: 2,   // at most 2 hazmat responses at once
//	    RateLimit:     1,   // at most 1 trigger/s
//	}
//
// # Controller
//
// [Controller.Admit] uses a token-bucket rate limiter
// (golang.org/x/time/rate) and an active-count gate for concurrency
// limits. Rejections carry [recovery.ErrRateLimited] or
// [recovery.ErrLimitExceeded] so callers can map them to distinct
// responses:
//
//	if err := ctrl.Admit(workflowName); err != nil {
//	    return err
//	}
//	defer ctrl.Release(workflowName)
//	// run the execution
//
// Workflows without a [Config] are bounded only by the engine-wide
// limits.
package admission
