// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared process-wide (GetValidator). Besides
// the built-in tags it registers:
//
//   - graphid: numeric page id or page_post composite id
//   - period: one of day, week, days_28, lifetime
//
// ValidateStruct returns a *RequestValidationError whose ToAPIError output
// matches the API's VALIDATION_ERROR envelope. The sync orchestrator also uses
// it to drop malformed page summaries returned by the Graph API.
package validation
