// Package retry decides whether a failed attempt is retried, how long to
// wait before the next one, and whether credentials must be refreshed first.
//
// # Policies
//
// A Policy combines a Condition (should this failure be retried at all), a
// Strategy (how long to back off) and a maximum retry count. Three presets
// are provided:
//
//   - DefaultPolicy: 3 retries, full jitter from 100ms (500ms when throttled), 20s cap
//   - DynamoDBPolicy: 10 retries, full jitter from 25ms
//   - NoRetryPolicy: never retries
//
// Requests carrying a non-rewindable body are never retried, and neither are
// aborted calls, whatever the policy says.
//
// # Retry capacity
//
// Capacity is a client-wide token bucket that limits how many non-throttling
// retries a client performs while a service is failing. Each such retry costs
// ThrottledRetryCost tokens; successful calls return tokens.
//
// # Per-service tuning
//
// Table maps service names to policies so tuning is data, not code:
//
//	table := retry.NewTable()
//	table.Set("dynamodb", retry.DynamoDBPolicy())
//	policy := table.PolicyFor("dynamodb", retry.DefaultPolicy())
package retry
