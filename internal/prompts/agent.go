package prompts

// EmptyResponseNudge is the prompt injected when the model returns no
// content after executing tool calls. It gives the model one more
// chance to produce a user-visible response.
const EmptyResponseNudge = "You executed tool calls but did not provide a response to the user. Please respond now."

// EmptyResponseFallback is the user-facing message returned when the
// model fails to produce content even after being nudged.
const EmptyResponseFallback = "I processed your request but wasn't able to compose a response. Please try again."

// CriticalErrorFallback is the user-facing message returned when an
// unexpected error escapes request processing. The transcript is left
// untouched in that case.
const CriticalErrorFallback = "I apologize, but I encountered an error. Please try again."
