// Package intent classifies user input onto the gateway's capability
// routes. Classification prefers a configured chat model and degrades to
// keyword matching, so routing always succeeds even with no provider.
package intent
