// Package google wires the application to Google's OAuth2 endpoints and
// persists credentials on disk.
//
// It contributes three pieces:
//
//   - the oauth2.Config used for the interactive authorization flow
//   - a FileStore implementing auth.Store, one JSON file per source
//   - a TokenRefresher implementing auth.Refresher on top of the
//     oauth2 token endpoint
//
// Credential ownership stays with the auth package; this package only
// knows how to talk to Google and how to read and write token files.
package google
