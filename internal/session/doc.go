// Package session implements the Husky client's connection lifecycle and
// application state machine.
//
// # Overview
//
// The client shows exactly one of three screens:
//   - Auth: the user enters a credential such as "alice:secret"
//   - Job: an authorization or pairing ("tie") operation with progress and a log
//   - Session: an authorized user, optionally tied to one peer, with messages
//
// A Machine owns that state and the outbound send queue. It runs on a single
// goroutine (Run) and everything else, including the UI, the connection
// bootstrap and both socket pumps, reaches it through a mailbox. Readers get
// immutable copies through Snapshot.
//
// # Connecting
//
// SubmitCredential starts an "Authorizing..." job that:
//  1. GETs the relay's preflight endpoint and expects the body "Ok"
//  2. opens the WebSocket
//  3. starts the inbound and outbound pumps
//  4. queues an authorize frame carrying "secret/credential"
//
// The job stays in progress until the relay answers. Progress moves through
// 25, 50, 75 and 90 along the way and reaches 100 on acceptance.
//
// # Pumps
//
// The inbound pump owns the read half of the socket and hands each frame to
// the machine in arrival order. The outbound pump owns the write half and
// drains the send queue on a fixed tick. Sending the drop-session sentinel
// is the only way the outbound pump ends gracefully.
//
// # Finishing Jobs
//
// Jobs never advance on their own. The UI calls Continue once the user has
// read the result, or AbortJob while the job is still running.
//
// # Usage Example
//
//	m := session.NewMachine(session.Options{
//	    Endpoint: session.Endpoint{Host: "chat.local", Port: 8080, Secret: "key"},
//	})
//	go m.Run(ctx)
//
//	if err := m.SubmitCredential(ctx, "alice:xyz"); err != nil {
//	    return err
//	}
//	snap := m.Snapshot()
//	fmt.Println(snap.Screen, snap.Job.Progress)
package session
