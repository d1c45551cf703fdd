// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capture drives barcode capture sessions from a user trigger to a
// terminal state and bridges the decoded value to the host form.
//
// A session moves Idle → Active → {Succeeded, Failed}. Both input modalities
// (camera stream and uploaded file) resolve a single-resolution result, so the
// hand-off and the recovery path are shared. All collaborators (recognition
// capability, output surface, host form, file picker, reloader) are injected.
package capture
