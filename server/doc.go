// Package server exposes the chat and ingestion pipeline over HTTP.
//
// Routes:
//
//	POST   /api/chat                           answer a turn, as JSON or an SSE stream
//	DELETE /api/chat/{conversationId}/history  forget a conversation
//	POST   /api/ingest                         ingest one article synchronously
//	POST   /api/ingest/batch                   start a background batch
//	GET    /api/ingest/status                  progress of the current or last batch
//	GET    /api/health                         liveness and cache mode
//
// Errors are returned as {"error": code, "message": text} with the status
// derived from the error taxonomy in core.
package server
