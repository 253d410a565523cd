// Package feedback generates evaluative narrative text for a finished mock
// interview. The Generator contract is deliberately small (transcript and
// role in, text out) so the reconciler can treat the LLM as an opaque
// collaborator and substitute fixed fallback text when it misbehaves.
//
// Two provider families are supported: OpenAI-compatible chat-completions
// APIs (Groq, OpenRouter) and the Gemini API via the genai SDK. Both share
// the same rubric prompt.
package feedback

import (
	"context"
	"fmt"
)

// Generator produces narrative interview feedback from a transcript and a
// role label. Implementations must honor the context for cancellation and
// deadlines and must not retry internally.
type Generator interface {
	Generate(ctx context.Context, transcript, jobRole string) (string, error)
}

// systemPrompt frames the model for every provider.
const systemPrompt = "You are a professional interview evaluator."

// buildPrompt renders the evaluation rubric around the transcript. The
// rubric asks for role-specific strengths and weaknesses, communication and
// problem-solving assessment, concrete improvements, a summary, and a final
// score, which covers the minimum contract (score, strengths, areas to
// improve, summary).
func buildPrompt(transcript, jobRole string) string {
	return fmt.Sprintf(`You are an experienced interviewer and career coach specializing in hiring for the role of %s.

Analyze the following completed voice-based mock interview transcript and generate structured feedback.

Evaluate the candidate on:
1. Role-specific strengths
2. Role-specific weaknesses
3. Communication skills
4. Problem-solving ability
5. Areas to improve
6. Practical suggestions
7. Overall summary
8. Final score out of 10

Interview Transcript:
%s`, jobRole, transcript)
}
