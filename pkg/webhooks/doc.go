// Package webhooks delivers scheduled analysis reports to HTTP endpoints.
//
// # Events
//
//	graph.refreshed        every scheduled workspace analysis
//	graph.cycles_detected  an analysis that found cross-repository cycles
//
// A webhook with no event list receives both.
//
// # Delivery
//
// Payloads are the Event as JSON, or a Slack message when Format is
// "slack". With a secret set, each request carries
//
//	X-Depgraph-Signature: sha256=<hex HMAC-SHA256 of the body>
//
// which receivers can check with VerifySignature. Failed deliveries are
// retried with exponential backoff; 4xx responses other than 429 are not
// retried. Recent deliveries are kept in memory and served at
// GET /webhooks/deliveries.
//
// # Usage Example
//
//	notifier, err := webhooks.NewNotifier([]webhooks.Webhook{{
//		URL:    "https://hooks.example.com/depgraph",
//		Secret: "webhook-secret",
//	}}, webhooks.DefaultRetryConfig(), log)
//	refresher.SetNotifier(notifier)
package webhooks
