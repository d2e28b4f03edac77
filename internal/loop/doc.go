// Package loop drives a scheduler from real time.
//
// The loop samples a Clock once per frame, turns the difference into a
// clamped delta and feeds it to Scheduler.Update. Frames are paced with a
// token-bucket limiter at the configured target FPS.
//
// The scheduler is only ever touched from the goroutine running Run. Other
// goroutines hand work to it with Post; config changes go through Apply.
package loop
