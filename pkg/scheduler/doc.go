// Package scheduler periodically rebuilds and analyzes every workspace.
//
// A Refresher runs on a cron schedule, keeps the latest report of each
// workspace in memory and publishes cycle counts as Prometheus gauges.
//
//	refresher := scheduler.NewRefresher(store, builder, opts, log)
//	refresher.SetMetrics(metrics)
//	if err := refresher.Start("@every 15m"); err != nil {
//		log.Fatal(err)
//	}
//	defer refresher.Stop(ctx)
package scheduler
