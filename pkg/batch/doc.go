// Package batch drives the room x month fan-out against the upstream schedule
// endpoint.
//
// A run expands a roster and an inclusive month range into WorkItems
// (room-major, then chronological), cuts them into fixed-size batches and
// executes each batch concurrently through a schedule.Fetcher. Batches are
// strictly sequential and separated by a fixed delay, which keeps the request
// rate against the upstream site low without a shared limiter.
//
// Example usage:
//
//	client, _ := schedule.New(schedule.DefaultConfig(), logger)
//	scheduler := batch.NewScheduler(client, batch.DefaultConfig(), logger)
//	report := scheduler.Run(ctx, rooms, schedule.DateRange{
//		StartYear: 2024, StartMonth: 1, EndYear: 2024, EndMonth: 3,
//	}, session)
//
// The scheduler:
//   - Dispatches up to BatchSize fetches at once
//   - Keeps results in WorkItem order regardless of completion order
//   - Stops after the first batch that saw an auth failure
//   - Stops before the next batch when the caller's context is done
//   - Never interrupts a fetch that was already dispatched
package batch
