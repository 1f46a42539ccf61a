// Package keys adapts the host keyboard into hardware key events.
package keys
