// Package model defines the opaque language-model capability consumed by the
// agents: a normalized Request/Response pair streamed over channels, plus a
// declarative tool definition format for function calling. Provider adapters
// live in subpackages (openai, anthropic); MockModel serves tests and demos.
package model
