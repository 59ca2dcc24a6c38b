package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"orderdesk/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// Agent wraps the OpenAI Responses API for the two structured-output tasks the
// dashboard uses: landing copy generation and address normalization. It
// satisfies core.LandingCopywriter and core.AddressNormalizer.
type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

// normalizedAddress is the structured output of NormalizeAddress.
type normalizedAddress struct {
	Address string `json:"address" jsonschema_description:"The canonical single-line form of the address"`
	City    string `json:"city" jsonschema_description:"The city extracted from the address"`
}

func (a *Agent) GenerateLandingCopy(ctx context.Context, name, description string) (*core.LandingCopy, error) {
	prompt := fmt.Sprintf(`You are a direct-response copywriter for a D2C e-commerce brand.
Write landing page copy for the product below.
Rules:
1. The headline is under 10 words and leads with the main benefit.
2. Provide 3 to 5 selling points, each a single sentence.
3. Provide 3 to 5 FAQ entries a first-time buyer would actually ask.
4. Plain language, no superlatives you cannot back up.

Product: %s
Description: %s`, name, description)

	var copy core.LandingCopy
	if err := a.structured(ctx, prompt, "landing_copy", "Landing page copy for a product", &copy); err != nil {
		return nil, err
	}
	if copy.Headline == "" {
		return nil, fmt.Errorf("copy generation returned an empty headline")
	}
	return &copy, nil
}

func (a *Agent) NormalizeAddress(ctx context.Context, raw string) (string, error) {
	prompt := fmt.Sprintf(`You are an address normalization service.
Rewrite the shipping address below into one canonical line.
Rules:
1. Expand abbreviations (st -> street, apt -> apartment).
2. Fix obvious typos, keep house and apartment numbers exactly as given.
3. Do not invent information that is not in the input.

Address: %s`, raw)

	var out normalizedAddress
	if err := a.structured(ctx, prompt, "normalized_address", "A canonicalized shipping address", &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Address) == "" {
		return "", fmt.Errorf("normalization returned an empty address")
	}
	return out.Address, nil
}

// structured runs one Responses call with a JSON-schema-constrained output and
// decodes it into out. The schema is reflected from out's type.
func (a *Agent) structured(ctx context.Context, prompt, name, description string, out any) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(out))
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        name,
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt(description),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return fmt.Errorf("empty response content")
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to parse completion: %w", err)
	}
	return nil
}
