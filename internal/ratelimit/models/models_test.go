package models

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// Crafted identifiers must never land in another caller's bucket.
type KeySecuritySuite struct {
	suite.Suite
}

func TestKeySecuritySuite(t *testing.T) {
	suite.Run(t, new(KeySecuritySuite))
}

func (s *KeySecuritySuite) TestIPv6AddressesAreEscaped() {
	key := NewIPKey("2001:db8::1", ClassWallet)
	s.Equal("ip:2001_cdb8_c_c1:wallet", key.String())
}

func (s *KeySecuritySuite) TestNoCollisionBetweenEscapedForms() {
	pairs := [][2]string{
		{"a:b", "a_cb"},
		{"a_:b", "a__cb"},
		{"x:wallet", "x_cwallet"},
	}
	for _, p := range pairs {
		s.NotEqual(
			NewIPKey(p[0], ClassWallet).String(),
			NewIPKey(p[1], ClassWallet).String(),
			"%q and %q collide", p[0], p[1],
		)
	}
}

func (s *KeySecuritySuite) TestClassSeparatesBuckets() {
	s.NotEqual(
		NewIPKey("203.0.113.7", ClassWallet).String(),
		NewIPKey("203.0.113.7", ClassCallback).String(),
	)
}
