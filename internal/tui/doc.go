// Package tui is the Bubble Tea front end of the Husky client.
//
// AppModel never owns chat state. Every TickInterval it copies a snapshot
// from a Controller (normally *session.Machine) and renders the screen the
// snapshot names:
//   - Auth: logo, version and relay name above the auth key input
//   - Job: title, progress bar and the timestamped progress log
//   - Session: pairing status, the tie input, messages newest first and
//     the message input
//
// Key presses become Controller actions run as tea.Cmds. Whenever the
// snapshot generation changes, focus and every input buffer are reset
// before the new screen is rendered, so text typed on one screen never
// leaks into the next.
//
// Keys: ↑/↓ (or tab) move focus, ENTER submits the focused field (or logs
// out from the chat header, or continues a finished job), ESC aborts a
// running job, ctrl+u unties, F9 or ctrl+c exits.
package tui
