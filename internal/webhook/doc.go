// Package webhook implements the HTTP side of the gateway: it accepts webhook
// deliveries, authenticates them and hands accepted ones to a Runner.
//
// # Request Flow
//
//  1. HTTP POST arrives at any path
//  2. Origin detected from the event header (400 if none is present)
//  3. Required headers and User-Agent checked for the detected origin (400)
//  4. Path looked up in the routing table (404 if unknown)
//  5. Body read up to the size limit (413 if larger)
//  6. Event type read using the definition's origin
//  7. Signature verified when the definition has a secret (401 on mismatch)
//  8. Event type checked against the definition's allow-list (400)
//  9. Payload flattened into the template namespace (400 if not JSON)
//  10. Command or script executed; stdout returned with 200
//
// Execution is synchronous. A failing command yields 500 with the exit status
// and captured output in the body. The command is detached from the request
// context, so a client disconnect does not kill it.
//
// # Security Model
//
//   - Signatures are checked by package origin using constant-time comparison
//   - Authentication failures get fixed messages ("Invalid signature")
//   - Request logging excludes payloads and signature headers
//   - An optional token bucket limits the global request rate (429)
//
// # Other Routes
//
//   - GET /healthz returns "ok" and the number of routed definitions
//   - The Prometheus handler is mounted when a metrics path is configured
//
// # Example Usage
//
//	table, cfg, err := routing.Load("/etc/grhooks")
//	if err != nil {
//		return err
//	}
//	exec := dispatch.New(dispatch.WithDefaultTimeout(cfg.CommandTimeout.Std()))
//	server := webhook.New(webhook.ConfigFrom(cfg), table, exec, logger)
//	if err := server.Start(ctx); err != nil {
//		return err
//	}
package webhook
