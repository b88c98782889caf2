package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hyperledger/aries-framework-go/component/models/presexch"

	"verigate/internal/exchange/models"
	dErrors "verigate/pkg/domain-errors"
)

// validateSubmission checks the presentation_submission against pd and the
// vp_token it describes. Only structure is checked here; proofs are left to
// the verifier.
func validateSubmission(pd *presexch.PresentationDefinition, sub *models.Submission) error {
	var ps presexch.PresentationSubmission
	if err := json.Unmarshal(sub.PresentationSubmission, &ps); err != nil {
		return malformed("presentation_submission is not a valid submission object")
	}
	if ps.DefinitionID != pd.ID {
		return malformed("presentation_submission does not reference the requested definition")
	}
	if len(ps.DescriptorMap) == 0 {
		return malformed("presentation_submission has an empty descriptor_map")
	}

	root, isToken, err := submissionRoot(sub.VPToken)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(pd.InputDescriptors))
	for _, d := range pd.InputDescriptors {
		known[d.ID] = false
	}
	for _, m := range ps.DescriptorMap {
		if m == nil {
			return malformed("descriptor_map contains an empty entry")
		}
		if _, ok := known[m.ID]; !ok {
			return malformed(fmt.Sprintf("descriptor %q is not part of the definition", m.ID))
		}
		known[m.ID] = true
		if !formatMatches(m.Format, isToken) {
			return malformed(fmt.Sprintf("descriptor %q format %q does not match the vp_token", m.ID, m.Format))
		}
		if err := resolveMapping(root, m); err != nil {
			return err
		}
	}

	if len(pd.SubmissionRequirements) == 0 {
		for id, seen := range known {
			if !seen {
				return malformed(fmt.Sprintf("descriptor %q was not submitted", id))
			}
		}
	}
	return nil
}

// submissionRoot decodes the vp_token into the document descriptor paths are
// evaluated against. A compact token yields its payload claims.
func submissionRoot(raw json.RawMessage) (any, bool, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, malformed("vp_token is not valid JSON")
	}
	switch t := value.(type) {
	case map[string]any:
		return t, false, nil
	case string:
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(t), claims); err != nil {
			return nil, false, malformed("vp_token is not a compact token")
		}
		return map[string]any(claims), true, nil
	default:
		return nil, false, malformed("unsupported vp_token format")
	}
}

// resolveMapping checks that the mapping's path, and each nested path,
// selects something in root. Token payloads are also searched under "vp".
func resolveMapping(root any, m *presexch.InputDescriptorMapping) error {
	for current := m; current != nil; current = current.PathNested {
		if current.Path == "" {
			return malformed(fmt.Sprintf("descriptor %q has no path", m.ID))
		}
		if !pathResolves(root, current.Path) {
			return malformed(fmt.Sprintf("descriptor %q path %q does not resolve in the vp_token", m.ID, current.Path))
		}
	}
	return nil
}

func pathResolves(root any, path string) bool {
	if v, err := jsonpath.Get(path, root); err == nil && v != nil {
		return true
	}
	if claims, ok := root.(map[string]any); ok {
		if vp, ok := claims["vp"]; ok {
			v, err := jsonpath.Get(path, vp)
			return err == nil && v != nil
		}
	}
	return false
}

// formatMatches rejects a presentation-level format that contradicts the
// vp_token shape. Credential-level and unknown formats are accepted.
func formatMatches(format string, isToken bool) bool {
	switch format {
	case "ldp_vp", "ldp":
		return !isToken
	case "jwt_vp", "jwt_vp_json", "jwt":
		return isToken
	default:
		return true
	}
}

func malformed(msg string) error {
	return dErrors.New(dErrors.CodeMalformedSubmission, msg)
}
