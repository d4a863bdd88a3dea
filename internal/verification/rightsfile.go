package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrapesafe/scrapesafe-backend/pkg/signer"
)

const wellKnownPath = "/.well-known/scrapesafe.json"

var requiredRightsFileFields = []string{"domain", "owner", "token", "signature"}

// CheckRightsFile fetches /.well-known/scrapesafe.json and validates it as a
// cryptographic proof of domain control: required fields, exact domain and
// token match, case-insensitive owner match, and an owner signature over the
// canonical payload with the signature field excluded. A reachable but
// invalid file yields found=true, valid=false with the specific failed check;
// network or parse failure yields found=false.
func (c *Checker) CheckRightsFile(ctx context.Context, domain, expectedToken, expectedOwner string) Result {
	url := "https://" + domain + wellKnownPath

	resp, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return Result{Details: fmt.Sprintf("fetching %s failed: %v", url, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Details: fmt.Sprintf("%s returned status %d", url, resp.StatusCode)}
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return Result{Details: fmt.Sprintf("rights file is not valid JSON: %v", err)}
	}

	if missing := missingFields(payload); len(missing) > 0 {
		return Result{
			Found:   true,
			Details: "rights file missing required fields: " + strings.Join(missing, ", "),
			Raw:     payload,
		}
	}

	fileDomain, _ := payload["domain"].(string)
	fileOwner, _ := payload["owner"].(string)
	fileToken, _ := payload["token"].(string)
	fileSignature, _ := payload["signature"].(string)

	if fileDomain != domain {
		return Result{
			Found:   true,
			Details: fmt.Sprintf("rights file domain %q does not match %q", fileDomain, domain),
			Raw:     payload,
		}
	}
	if fileToken != expectedToken {
		return Result{
			Found:   true,
			Details: "rights file token does not match the verification token",
			Raw:     payload,
		}
	}
	if !strings.EqualFold(fileOwner, expectedOwner) {
		return Result{
			Found:   true,
			Details: fmt.Sprintf("rights file owner %q does not match the registered owner", fileOwner),
			Raw:     payload,
		}
	}

	// The signature covers everything except the signature field itself.
	signed := make(map[string]any, len(payload)-1)
	for key, value := range payload {
		if key == "signature" {
			continue
		}
		signed[key] = value
	}

	verification := signer.VerifyOwner(signed, fileSignature, expectedOwner)
	if !verification.Valid {
		details := "rights file signature is invalid"
		if verification.Signer != "" {
			details = fmt.Sprintf("rights file signed by %s, not the registered owner", verification.Signer)
		}
		return Result{Found: true, Details: details, Raw: payload}
	}

	return Result{
		Found:   true,
		Valid:   true,
		Details: "rights file verified with a valid owner signature",
		Raw:     payload,
	}
}

func missingFields(payload map[string]any) []string {
	var missing []string
	for _, field := range requiredRightsFileFields {
		value, ok := payload[field].(string)
		if !ok || strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}
