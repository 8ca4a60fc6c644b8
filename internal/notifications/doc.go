// Package notifications delivers classified digests to people.
//
// Email sends one plain-text message per age category to that category's
// recipient group. The ntfy notifier pushes a single summary per digest.
// NewService assembles whichever transports are configured and degrades to a
// no-op when none are, so the pipeline depends only on the Service interface.
package notifications
