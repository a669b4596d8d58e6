// Package callbacks holds the business-rule handlers for the case-event
// callback phases. Each handler is registered with the callback dispatcher
// at the composition root; none of them know about each other.
package callbacks
