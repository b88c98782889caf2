package relyingparty

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration: relying parties plus service-wide signing keys.
type File struct {
	RelyingParties []*RelyingParty
	SigningKeys    []SigningKey
}

type rawFile struct {
	RelyingParties []rawRelyingParty `yaml:"relyingParties"`
	SigningKeys    []SigningKey      `yaml:"signingKeys"`
}

type rawRelyingParty struct {
	RelyingParty `yaml:",inline"`
	Workflow     yaml.Node `yaml:"workflow"`
}

type rawStep struct {
	VerifiablePresentationRequest any `yaml:"verifiablePresentationRequest"`
	PresentationDefinition        any `yaml:"presentationDefinition"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read relying party config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode relying party config: %w", err)
	}

	out := &File{SigningKeys: raw.SigningKeys}
	for i := range out.SigningKeys {
		if err := validate.Struct(&out.SigningKeys[i]); err != nil {
			return nil, fmt.Errorf("signing key %d: %w", i, err)
		}
	}

	for i := range raw.RelyingParties {
		r := raw.RelyingParties[i]
		rp := r.RelyingParty
		wf, err := decodeWorkflow(&r.Workflow)
		if err != nil {
			return nil, fmt.Errorf("relying party %q: %w", rp.ClientID, err)
		}
		rp.Workflow = wf
		if err := validate.Struct(&rp); err != nil {
			return nil, fmt.Errorf("relying party %q: %w", rp.ClientID, err)
		}
		out.RelyingParties = append(out.RelyingParties, &rp)
	}
	return out, nil
}

func decodeWorkflow(node *yaml.Node) (Workflow, error) {
	if node.Kind == 0 {
		return nil, errors.New("workflow is required")
	}
	var head struct {
		Type WorkflowType `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}

	var wf Workflow
	switch head.Type {
	case WorkflowNative:
		var w struct {
			ID          string             `yaml:"id"`
			InitialStep string             `yaml:"initialStep"`
			Steps       map[string]rawStep `yaml:"steps"`
		}
		if err := node.Decode(&w); err != nil {
			return nil, fmt.Errorf("decode native workflow: %w", err)
		}
		native := &NativeWorkflow{ID: w.ID, InitialStep: w.InitialStep, Steps: make(map[string]Step, len(w.Steps))}
		for name, s := range w.Steps {
			step, err := decodeStep(s)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", name, err)
			}
			native.Steps[name] = step
		}
		if len(native.Steps) > 0 {
			if _, _, ok := native.CurrentStep(); !ok {
				return nil, errors.New("initial step not found in steps")
			}
		}
		wf = native
	case WorkflowVCAPI:
		var w struct {
			VCAPIWorkflow `yaml:",inline"`
			Capability    any `yaml:"capability"`
			VPR           any `yaml:"vpr"`
		}
		if err := node.Decode(&w); err != nil {
			return nil, fmt.Errorf("decode vc-api workflow: %w", err)
		}
		vc := w.VCAPIWorkflow
		var err error
		if vc.Capability, err = toJSON(w.Capability); err != nil {
			return nil, fmt.Errorf("capability: %w", err)
		}
		if vc.VPR, err = toJSON(w.VPR); err != nil {
			return nil, fmt.Errorf("vpr: %w", err)
		}
		if len(vc.Capability) == 0 {
			return nil, errors.New("capability is required")
		}
		wf = &vc
	case WorkflowEntra:
		var w EntraWorkflow
		if err := node.Decode(&w); err != nil {
			return nil, fmt.Errorf("decode entra workflow: %w", err)
		}
		wf = &w
	default:
		return nil, fmt.Errorf("unsupported workflow type %q", head.Type)
	}

	if err := validate.Struct(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func decodeStep(s rawStep) (Step, error) {
	var step Step
	if s.VerifiablePresentationRequest != nil {
		vpr, err := toJSON(s.VerifiablePresentationRequest)
		if err != nil {
			return step, fmt.Errorf("verifiablePresentationRequest: %w", err)
		}
		step.VerifiablePresentationRequest = string(vpr)
	}
	pd, err := toJSON(s.PresentationDefinition)
	if err != nil {
		return step, fmt.Errorf("presentationDefinition: %w", err)
	}
	step.PresentationDefinition = pd
	if step.VerifiablePresentationRequest == "" && len(step.PresentationDefinition) == 0 {
		return step, errors.New("verifiablePresentationRequest or presentationDefinition is required")
	}
	return step, nil
}

// toJSON accepts either a JSON document embedded as a YAML string or a YAML mapping.
func toJSON(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if !json.Valid([]byte(t)) {
			return nil, errors.New("invalid JSON document")
		}
		return json.RawMessage(t), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}
