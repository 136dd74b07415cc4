package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// OpenAIClient talks to OpenAI or any server with a compatible chat
// completions endpoint (Ollama).
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model, baseURL string, timeout time.Duration) *OpenAIClient {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}
}

func (c *OpenAIClient) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []Tool) (*Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toOpenAIMessages(systemPrompt, messages),
		Tools:    toOpenAITools(tools),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &Response{}, nil
	}

	msg := resp.Choices[0].Message
	result := &Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		fn := tc.AsFunction()
		result.ToolCalls = append(result.ToolCalls, parseToolCall(fn.ID, fn.Function.Name, fn.Function.Arguments))
	}
	return result, nil
}

func toOpenAITools(tools []Tool) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		})
	}
	return out
}

func toOpenAIMessages(systemPrompt string, messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)}
	for _, m := range messages {
		switch {
		case m.Role == "user" && m.ToolCallID != "":
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case m.Role == "user":
			out = append(out, openai.UserMessage(m.Content))
		case m.Role == "assistant" && len(m.ToolCalls) == 0:
			out = append(out, openai.AssistantMessage(m.Content))
		case m.Role == "assistant":
			calls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Params)
				calls[j] = openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(args),
						},
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: param.NewOpt(m.Content)},
					ToolCalls: calls,
				},
			})
		}
	}
	return out
}

// parseToolCall decodes the JSON argument string a model sent. Arguments
// that do not decode to an object are flagged rather than dropped so the
// tool can report them.
func parseToolCall(id, name, args string) ToolCall {
	tc := ToolCall{ID: id, Name: name, Params: map[string]any{}}
	if args == "" {
		return tc
	}
	if err := json.Unmarshal([]byte(args), &tc.Params); err != nil {
		log.Printf("llm: malformed arguments for %s: %v", name, err)
		tc.Params = map[string]any{}
		tc.ArgsError = "malformed arguments: " + err.Error()
	}
	if tc.Params == nil {
		tc.Params = map[string]any{}
	}
	return tc
}
