// Package schemas holds the JSON Schemas for payloads exchanged with the AI
// backend and returned by the API.
package schemas

import _ "embed"

// VerificationResult is the shape the AI backend must return when matching skills
//
//go:embed verification_result.schema.json
var VerificationResult string

// VerificationRecord is the persisted record as served by the API
//
//go:embed verification_record.schema.json
var VerificationRecord string
