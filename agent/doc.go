// Package agent implements the worker agents driven by the supervisor. A
// Worker wraps a language model, a system instruction and a closed table of
// callable tools; its Respond method runs one delegated turn as a
// model -> tool -> model loop and returns the events it produced.
//
// Workers never dispatch outside their registered tool table. A model request
// for an unknown tool is answered with an error function response in the
// conversation, so the model can observe the mistake and recover, while the
// process boundary stays intact.
package agent
