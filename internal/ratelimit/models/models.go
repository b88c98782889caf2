// Package models holds rate limit keys, budgets and decisions.
package models

import (
	"fmt"
	"strings"
	"time"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	// ClassWallet covers the unauthenticated OID4VP request and response endpoints.
	ClassWallet EndpointClass = "wallet"
	// ClassRelyingParty covers exchange creation, status and touch.
	ClassRelyingParty EndpointClass = "relying_party"
	// ClassCallback covers provider callbacks.
	ClassCallback EndpointClass = "callback"
)

// KeyPrefix identifies what a bucket is keyed by.
type KeyPrefix string

const KeyPrefixIP KeyPrefix = "ip"

// Key is a bucket key. Segments are escaped so a crafted identifier cannot
// address another bucket.
type Key struct {
	prefix     KeyPrefix
	identifier string
	class      EndpointClass
}

// NewIPKey builds the per-IP key for class.
func NewIPKey(ip string, class EndpointClass) Key {
	return Key{
		prefix:     KeyPrefixIP,
		identifier: sanitizeKeySegment(ip),
		class:      class,
	}
}

// String returns the storage key.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.prefix, k.identifier, k.class)
}

// sanitizeKeySegment escapes '_' first and then ':', which keeps the mapping
// injective. IPv6 addresses rely on this.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	return strings.ReplaceAll(s, ":", "_c")
}

// Limit is a request budget per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, zero when allowed
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}
