// Package assistant provides the business boundary for the Ops Dash analyst
// agent. It defines the Service (run lifecycle, persistence), Engine (pure
// LLM orchestration with a tool loop), Store interface, and domain models.
package assistant
