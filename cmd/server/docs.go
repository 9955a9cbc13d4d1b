// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

// General API information for swag. Regenerate the docs package with:
//
//	swag init -g cmd/server/docs.go -o docs
//
// @title Releasewatch API
// @version 1.0
// @description Subscribe to new-release notifications for followed artists by email, Telegram or SMS.
// @description
// @description ## Error Responses
// @description
// @description All error responses follow this format:
// @description ```json
// @description {
// @description   "status": "error",
// @description   "data": null,
// @description   "error": {
// @description     "code": "VALIDATION_ERROR",
// @description     "message": "Human-readable error message"
// @description   },
// @description   "metadata": {
// @description     "timestamp": "2026-10-14T12:34:56Z"
// @description   }
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/releasewatch/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Admin JWT minted with releasectl token: "Bearer {token}"
//
// @tag.name Core
// @tag.description Health checks and metrics
//
// @tag.name Subscriptions
// @tag.description Subscriber registration and contact details
//
// @tag.name Catalog
// @tag.description Artist search against the Spotify catalog
//
// @tag.name Admin
// @tag.description Notification ledger and reconciliation cycles

package main
