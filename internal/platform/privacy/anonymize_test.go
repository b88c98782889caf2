package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "ipv4", input: "192.168.1.47", want: "192.168.1.0"},
		{name: "ipv4 already masked", input: "10.0.0.0", want: "10.0.0.0"},
		{name: "ipv4 loopback", input: "127.0.0.1", want: "127.0.0.0"},
		{name: "ipv4-mapped ipv6", input: "::ffff:203.0.113.9", want: "203.0.113.0"},
		{name: "ipv6", input: "2001:db8:85a3::8a2e:370:7334", want: "2001:db8:85a3::"},
		{name: "ipv6 with zone", input: "fe80::1%eth0", want: "fe80::"},
		{name: "ipv6 loopback", input: "::1", want: "::"},
		{name: "empty", input: "", want: "unknown"},
		{name: "unknown marker", input: "unknown", want: "unknown"},
		{name: "garbage", input: "not-an-ip", want: "invalid"},
		{name: "host and port", input: "192.168.1.47:8080", want: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeIP(tt.input))
		})
	}
}
