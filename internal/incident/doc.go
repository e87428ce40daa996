// Package incident provides the lifecycle registry for incident markers in
// the ops warehouse. It defines the Service (create, resolve, search), the
// Store interface (persistence), and the domain models including the
// structured knowledge-pack document attached to each incident.
package incident
