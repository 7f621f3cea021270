// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRemote    = "remote_addr"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Media fields
	FieldFile       = "file"
	FieldMovie      = "movie"
	FieldResolution = "resolution"
	FieldFormat     = "format"
	FieldProtocol   = "protocol"
	FieldBandwidth  = "bandwidth_kbps"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath   = "path"
	FieldInput  = "input"
	FieldOutput = "output"
)
