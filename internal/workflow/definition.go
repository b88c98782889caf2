package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/models/presexch"

	"verigate/internal/relyingparty"
)

const variablePresentationDefinition = "presentationDefinition"

var (
	jwtAlgs   = []string{"ES256", "EdDSA"}
	ldpProofs = []string{"Ed25519Signature2018", "Ed25519Signature2020", "JsonWebSignature2020"}
)

// queryByExample is the subset of a VPR this service understands.
type queryByExample struct {
	Query json.RawMessage `json:"query"`
}

type vprQuery struct {
	Type            string          `json:"type"`
	CredentialQuery json.RawMessage `json:"credentialQuery"`
}

type credentialQuery struct {
	Reason  string `json:"reason"`
	Example struct {
		Context json.RawMessage `json:"@context"`
		Type    json.RawMessage `json:"type"`
	} `json:"example"`
}

// presentationDefinition returns the definition a native step asks for. A
// configured definition is used as-is; otherwise one is derived from the
// step's query-by-example request.
func presentationDefinition(step relyingparty.Step) (*presexch.PresentationDefinition, error) {
	if len(step.PresentationDefinition) > 0 {
		var pd presexch.PresentationDefinition
		if err := json.Unmarshal(step.PresentationDefinition, &pd); err != nil {
			return nil, fmt.Errorf("decode presentation definition: %w", err)
		}
		if pd.ID == "" {
			pd.ID = uuid.NewString()
		}
		if err := pd.ValidateSchema(); err != nil {
			return nil, fmt.Errorf("presentation definition: %w", err)
		}
		return &pd, nil
	}
	return definitionFromQBE(step.VerifiablePresentationRequest)
}

// definitionFromQBE derives one input descriptor per credential query,
// constraining the credential type to the example's types.
func definitionFromQBE(vpr string) (*presexch.PresentationDefinition, error) {
	var doc queryByExample
	if err := json.Unmarshal([]byte(vpr), &doc); err != nil {
		return nil, fmt.Errorf("decode verifiable presentation request: %w", err)
	}

	queries, err := oneOrMany[vprQuery](doc.Query)
	if err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}

	pd := &presexch.PresentationDefinition{
		ID: uuid.NewString(),
		Format: &presexch.Format{
			JwtVC: &presexch.JwtType{Alg: jwtAlgs},
			JwtVP: &presexch.JwtType{Alg: jwtAlgs},
			LdpVC: &presexch.LdpType{ProofType: ldpProofs},
			LdpVP: &presexch.LdpType{ProofType: ldpProofs},
		},
	}
	for _, q := range queries {
		if q.Type != "QueryByExample" {
			continue
		}
		cqs, err := oneOrMany[credentialQuery](q.CredentialQuery)
		if err != nil {
			return nil, fmt.Errorf("decode credentialQuery: %w", err)
		}
		for _, cq := range cqs {
			pd.InputDescriptors = append(pd.InputDescriptors, inputDescriptor(cq))
		}
	}
	if len(pd.InputDescriptors) == 0 {
		return nil, fmt.Errorf("verifiable presentation request has no QueryByExample credential query")
	}
	return pd, nil
}

func inputDescriptor(cq credentialQuery) *presexch.InputDescriptor {
	stringType := "string"
	desc := &presexch.InputDescriptor{
		ID:          uuid.NewString(),
		Purpose:     cq.Reason,
		Constraints: &presexch.Constraints{},
	}
	types, _ := oneOrMany[string](cq.Example.Type)
	for _, t := range types {
		if t == "VerifiableCredential" {
			continue
		}
		desc.Constraints.Fields = append(desc.Constraints.Fields, &presexch.Field{
			Path: []string{"$.type", "$.vc.type"},
			Filter: &presexch.Filter{
				Type:    &stringType,
				Pattern: regexp.QuoteMeta(t),
			},
		})
	}
	return desc
}

// oneOrMany decodes a JSON value that may be a single item or an array.
func oneOrMany[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var many []T
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

// definitionToVariable converts pd into generic JSON for exchange variables.
func definitionToVariable(pd *presexch.PresentationDefinition) (map[string]any, error) {
	b, err := json.Marshal(pd)
	if err != nil {
		return nil, fmt.Errorf("marshal presentation definition: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal presentation definition: %w", err)
	}
	return out, nil
}

// definitionFromVariables reads back the definition stored at initiation.
func definitionFromVariables(vars map[string]any) (*presexch.PresentationDefinition, error) {
	raw, ok := vars[variablePresentationDefinition]
	if !ok {
		return nil, fmt.Errorf("exchange has no presentation definition")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal stored presentation definition: %w", err)
	}
	var pd presexch.PresentationDefinition
	if err := json.Unmarshal(b, &pd); err != nil {
		return nil, fmt.Errorf("decode stored presentation definition: %w", err)
	}
	return &pd, nil
}
