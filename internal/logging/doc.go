// Package logging provides structured logging for the Husky client and relay.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used by both binaries. Logging is silent unless a level
// is passed explicitly or HUSKY_LOG_LEVEL is set.
//
// # Log Levels
//
//   - Debug: Every protocol frame, raw bytes of corrupted frames
//   - Info: Connections, job lifecycle, HTTP preflight requests
//   - Warn: Connection drops, malformed frames, rejected logins
//   - Error: Startup failures, socket write failures
//
// # Specialized Logging
//
// Connection Logging:
//
//	logging.LogConnection(remoteAddr, "websocket_upgraded")
//	logging.LogConnection(remoteAddr, "websocket_closed")
//
// Frame Logging:
//
//	logging.LogFrame(remoteAddr, logging.DirectionIn, "Bbob: hi")
//
// Authorize frames are logged by flag only; their body holds credentials.
//
// Job Logging (client):
//
//	logging.LogJob(job.ID, job.Title, "failed")
//
// # Configuration
//
// The relay logs to stdout:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// The client draws on the terminal, so it logs to a file:
//
//	logging.InitializeWithOutput(level, "/home/me/.config/husky/husky.log")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and
// SetLogger are not; call them once during startup.
package logging
