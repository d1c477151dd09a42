// Package error provides the structured error type shared by all hatsuon packages.
//
// Package: error
// Title: hatsuon Error Handling
// Description: Errors carry a code from a closed taxonomy, a severity and optional
//              details so that callers can branch on the failure class (device,
//              format, transport, protocol, backend) without string matching.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-12-10
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with contextual errors and codes
// - 2025-12-10 v0.2.0: Reduced to the practice engine taxonomy, errors.Is by code
//
// Usage:
//   import hterror "github.com/msto63/hatsuon/foundation/core/error"
//
//   err := hterror.New("microphone access refused").
//     WithCode(hterror.CodePermissionDenied).
//     WithDetail("device", "default")
//
//   if hterror.HasCode(err, hterror.CodePermissionDenied) {
//     // show the permission hint, keep the record button enabled
//   }
package error
