package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockConfig configures the AWS Bedrock provider.
type BedrockConfig struct {
	// Name overrides the provider name, default "bedrock".
	Name string

	// Region is the AWS region, default "us-east-1".
	Region string

	// AccessKeyID and SecretAccessKey are static credentials. When empty the
	// default AWS credential chain applies (environment, profile, IAM role).
	AccessKeyID     string
	SecretAccessKey string

	// SessionToken accompanies temporary static credentials.
	SessionToken string

	// Model is the default model when a request names none.
	Model string
}

// Bedrock serves foundation models hosted on AWS Bedrock through the Converse
// API. Model listing goes through the control-plane client, scoped to text
// models; actual availability depends on the account's model access.
type Bedrock struct {
	name    string
	runtime *bedrockruntime.Client
	control *bedrock.Client
	model   string
	region  string
}

var _ Provider = (*Bedrock)(nil)
var _ ModelLister = (*Bedrock)(nil)

// NewBedrock creates the provider. Credential resolution happens lazily on
// the first call when the default chain is in use.
func NewBedrock(cfg BedrockConfig) (*Bedrock, error) {
	if cfg.Name == "" {
		cfg.Name = "bedrock"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Bedrock{
		name:    cfg.Name,
		runtime: bedrockruntime.NewFromConfig(awsCfg),
		control: bedrock.NewFromConfig(awsCfg),
		model:   cfg.Model,
		region:  cfg.Region,
	}, nil
}

// Name returns the configured provider name.
func (p *Bedrock) Name() string {
	return p.name
}

// Generate runs one Converse call, non-streaming.
func (p *Bedrock) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if model == "" {
		return nil, newError(p.name, "", errors.New("model is required"))
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.Prompt}},
		}},
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	inference := &types.InferenceConfiguration{}
	configured := false
	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		// #nosec G115 -- bounded by min above
		inference.MaxTokens = aws.Int32(int32(maxTokens))
		configured = true
	}
	if req.Temperature > 0 {
		inference.Temperature = aws.Float32(float32(req.Temperature))
		configured = true
	}
	if configured {
		input.InferenceConfig = inference
	}

	out, err := p.runtime.Converse(ctx, input)
	if err != nil {
		return nil, p.wrapError(err, model)
	}

	text := converseText(out)
	if text == "" {
		return nil, newError(p.name, model, errors.New("empty response"))
	}

	result := &GenerateResult{
		Text:     text,
		Model:    model,
		Provider: p.name,
	}
	if out.Usage != nil {
		result.PromptTokens = int(aws.ToInt32(out.Usage.InputTokens))
		result.CompletionTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	return result, nil
}

// ListModels enumerates the text foundation models of the region.
func (p *Bedrock) ListModels(ctx context.Context) ([]ModelInfo, error) {
	out, err := p.control.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		return nil, p.wrapError(err, "")
	}
	models := make([]ModelInfo, 0, len(out.ModelSummaries))
	for _, s := range out.ModelSummaries {
		models = append(models, ModelInfo{
			ID:       aws.ToString(s.ModelId),
			Name:     aws.ToString(s.ModelName),
			Provider: p.name,
		})
	}
	return models, nil
}

// converseText concatenates the text blocks of a Converse response.
func converseText(out *bedrockruntime.ConverseOutput) string {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var text string
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text += t.Value
		}
	}
	return text
}

func (p *Bedrock) wrapError(err error, model string) error {
	var throttle *types.ThrottlingException
	if errors.As(err, &throttle) {
		e := newError(p.name, model, err)
		e.Reason = ReasonRateLimit
		return e
	}
	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		e := newError(p.name, model, err)
		e.Reason = ReasonAuth
		return e
	}
	var validation *types.ValidationException
	if errors.As(err, &validation) {
		e := newError(p.name, model, err)
		e.Reason = ReasonInvalidRequest
		return e
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		e := newError(p.name, model, err)
		e.Reason = ReasonServer
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		e := newError(p.name, model, err)
		e.Reason = ReasonTimeout
		return e
	}
	return newError(p.name, model, fmt.Errorf("converse: %w", err))
}
