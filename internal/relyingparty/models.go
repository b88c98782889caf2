// Package relyingparty holds relying-party configuration and the registry that
// resolves a workflow id to its owner.
package relyingparty

import (
	"encoding/json"
	"slices"
)

// PurposeAuthorizationRequest tags keys allowed to sign OID4VP request objects.
const PurposeAuthorizationRequest = "authorization_request"

// WorkflowType discriminates the workflow variants.
type WorkflowType string

const (
	WorkflowNative WorkflowType = "native"
	WorkflowVCAPI  WorkflowType = "vc-api"
	WorkflowEntra  WorkflowType = "microsoft-entra-verified-id"
)

// RelyingParty is one configured verifier. Values are never mutated after load;
// the registry swaps whole snapshots instead.
type RelyingParty struct {
	ClientID     string       `yaml:"clientId" validate:"required"`
	ClientSecret string       `yaml:"clientSecret" validate:"required"`
	Name         string       `yaml:"name"`
	RedirectURI  string       `yaml:"redirectUri" validate:"omitempty,url"`
	Scopes       []Scope      `yaml:"scopes" validate:"dive"`
	SigningKeys  []SigningKey `yaml:"signingKeys" validate:"dive"`
	Workflow     Workflow     `yaml:"-" validate:"-"`
}

// Scope is a named OAuth scope.
type Scope struct {
	Name string `yaml:"name" validate:"required"`
}

// SigningKey is a PEM key pair tagged with the purposes it may be used for.
type SigningKey struct {
	ID            string   `yaml:"id" validate:"required"`
	Type          string   `yaml:"type" validate:"required,oneof=ES256 EdDSA"`
	Purpose       []string `yaml:"purpose" validate:"required,min=1"`
	PrivateKeyPEM string   `yaml:"privateKeyPem" validate:"required"`
	PublicKeyPEM  string   `yaml:"publicKeyPem"`
}

// HasPurpose reports whether the key is tagged with purpose.
func (k SigningKey) HasPurpose(purpose string) bool {
	return slices.Contains(k.Purpose, purpose)
}

// Workflow is the closed set of protocol bindings: *NativeWorkflow,
// *VCAPIWorkflow and *EntraWorkflow. Consumers switch on the concrete type.
type Workflow interface {
	WorkflowID() string
	Type() WorkflowType
	isWorkflow()
}

// NativeWorkflow is served by this service over OID4VP.
type NativeWorkflow struct {
	ID          string          `yaml:"id" validate:"required"`
	InitialStep string          `yaml:"initialStep"`
	Steps       map[string]Step `yaml:"steps" validate:"required,min=1,dive"`
}

// Step carries the presentation request template of a native workflow step.
// VerifiablePresentationRequest is a JSON document (query-by-example);
// PresentationDefinition, when set, is used as-is.
type Step struct {
	VerifiablePresentationRequest string          `yaml:"verifiablePresentationRequest"`
	PresentationDefinition        json.RawMessage `yaml:"-"`
}

// VCAPIWorkflow delegates the exchange to an external VC-API exchanger.
type VCAPIWorkflow struct {
	ID           string          `yaml:"id" validate:"required"`
	BaseURL      string          `yaml:"baseUrl" validate:"required,url"`
	ClientSecret string          `yaml:"clientSecret"`
	Capability   json.RawMessage `yaml:"-"`
	VPR          json.RawMessage `yaml:"-"`
}

// EntraWorkflow delegates verification to Microsoft Entra Verified ID.
type EntraWorkflow struct {
	ID                                        string `yaml:"id" validate:"required"`
	APIBaseURL                                string `yaml:"apiBaseUrl" validate:"required,url"`
	APILoginBaseURL                           string `yaml:"apiLoginBaseUrl" validate:"required,url"`
	APITenantID                               string `yaml:"apiTenantId"`
	APIClientID                               string `yaml:"apiClientId"`
	APIClientSecret                           string `yaml:"apiClientSecret"`
	VerifierDID                               string `yaml:"verifierDid" validate:"required"`
	VerifierName                              string `yaml:"verifierName" validate:"required"`
	AcceptedCredentialType                    string `yaml:"acceptedCredentialType" validate:"required"`
	CredentialVerificationCallbackAuthEnabled bool   `yaml:"credentialVerificationCallbackAuthEnabled"`
}

func (w *NativeWorkflow) WorkflowID() string { return w.ID }
func (w *NativeWorkflow) Type() WorkflowType { return WorkflowNative }
func (*NativeWorkflow) isWorkflow()          {}

func (w *VCAPIWorkflow) WorkflowID() string { return w.ID }
func (w *VCAPIWorkflow) Type() WorkflowType { return WorkflowVCAPI }
func (*VCAPIWorkflow) isWorkflow()          {}

func (w *EntraWorkflow) WorkflowID() string { return w.ID }
func (w *EntraWorkflow) Type() WorkflowType { return WorkflowEntra }
func (*EntraWorkflow) isWorkflow()          {}

// CurrentStep returns the step a new native exchange starts in.
func (w *NativeWorkflow) CurrentStep() (string, Step, bool) {
	name := w.InitialStep
	if name == "" {
		if _, ok := w.Steps["waiting"]; ok {
			name = "waiting"
		} else if len(w.Steps) == 1 {
			for k := range w.Steps {
				name = k
			}
		}
	}
	step, ok := w.Steps[name]
	return name, step, ok
}
