// Package origin detects which provider sent a webhook delivery and
// authenticates it according to that provider's dialect.
//
// # Dialects
//
//   - GitHub: requires X-GitHub-Hook-ID, X-GitHub-Event, X-GitHub-Delivery and a
//     User-Agent starting with "GitHub-Hookshot/". Signatures are HMAC-SHA256 in
//     X-Hub-Signature-256 ("sha256=<hex>"), falling back to HMAC-SHA1 in
//     X-Hub-Signature ("sha1=<hex>") when the stronger header is absent.
//   - GitLab: requires X-Gitlab-Event, X-Gitlab-Webhook-UUID, X-Gitlab-UUID and
//     a User-Agent starting with "Gitlab/". The signature step only checks that
//     X-Gitlab-Instance is present. No cryptographic verification is done for
//     this dialect, so a GitLab webhook is only as trusted as its network path.
//   - Generic: requires X-Webhook-ID, X-Webhook-Event and User-Agent (any value).
//     Signatures follow the GitHub scheme using X-Webhook-Signature-256 and
//     X-Webhook-Signature.
//
// # Security Model
//
//   - Digests are compared with crypto/subtle (constant-time comparison)
//   - Every decode failure or mismatch returns ErrInvalidSignature, so callers
//     learn nothing about where a signature went wrong
//   - Secrets never leave this package in errors
package origin
