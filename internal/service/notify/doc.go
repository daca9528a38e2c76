// Package notify delivers cycle outcome notifications to webhook, Slack,
// Discord and ntfy channels. Delivery is best effort: the caller logs the
// joined channel errors and never changes the outcome because of them.
package notify
