package urls

// Project and documentation URLs shown by the client and the relay

// Repository is the source repository, shown on the login screen.
const Repository = "github.com/muurk/husky"

// RelaySetup explains how to run husky-server, including users and TLS.
const RelaySetup = "https://muurk.github.io/husky/relay/setup/"

// Discovery covers mDNS advertising and "husky scan".
const Discovery = "https://muurk.github.io/husky/relay/discovery/"

// TroubleshootingGuide lists fixes for failed preflights and logins.
const TroubleshootingGuide = "https://muurk.github.io/husky/troubleshooting/"
