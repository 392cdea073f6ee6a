// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

// Package services adapts Pagesight components to suture.Service.
//
// Each wrapper translates a component's own lifecycle (ListenAndServe and
// Shutdown, Start and Stop, Run and Close, a periodic call) into a single
// context-aware Serve method and a String name for supervisor logs.
package services
