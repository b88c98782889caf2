package ldproof

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/models/signature/verifier"
	"github.com/stretchr/testify/assert"
)

func TestVerifierRejectsUnparseableInput(t *testing.T) {
	fetcherCalled := false
	v := New(nil, WithPublicKeyFetcher(func(_, _ string) (*verifier.PublicKey, error) {
		fetcherCalled = true
		return nil, errors.New("no keys in tests")
	}))

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"not json", `definitely not a presentation`},
		{"truncated object", `{"@context":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.VerifyPresentationProof(context.Background(), []byte(tt.raw)))
			assert.Error(t, v.VerifyCredentialProof(context.Background(), []byte(tt.raw)))
		})
	}
	assert.False(t, fetcherCalled)
}
