// Package model defines data structures for semstore.
//
// This package contains:
//   - Record: the stored entity (id, text, vector, timestamp)
//   - Item / ScoredItem: caller-visible projections without the vector
//   - Config: server configuration
//   - JSON-RPC 2.0: request/response/notification structures
//   - tagged operation results and MCP tool types
package model
