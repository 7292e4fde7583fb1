// Package domain holds the error taxonomy shared by the session layer.
//
// The sentinels are re-exported from pkg/client so that callers never need
// to import an internal package to match on them.
package domain
