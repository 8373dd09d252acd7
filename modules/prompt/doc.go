// Package prompt stores prompt/response pairs and fills the response in the
// background with a text generation model.
//
// GET /ai/random_llm_request stores a pair with a fixed prompt and queues a
// PerformTaskName task; the task records the response and model and bumps
// the pair's version. GeminiGenerator talks to the Gemini API through
// google.golang.org/genai.
package prompt
